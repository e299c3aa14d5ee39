package repository

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IngredientRepository struct {
	*Repository[models.Ingredient]
}

func NewIngredientRepository(db *gorm.DB) *IngredientRepository {
	return &IngredientRepository{Repository: NewRepository[models.Ingredient](db)}
}

// FindByNormalizedName looks up an active ingredient by its normalized name.
func (r *IngredientRepository) FindByNormalizedName(ctx context.Context, normalized string) (*models.Ingredient, error) {
	return r.FindOne(ctx, Where("normalized_name", normalized), models.ViewActive)
}

// FindByNormalizedNameForUpdate is FindByNormalizedName with a row lock.
func (r *IngredientRepository) FindByNormalizedNameForUpdate(ctx context.Context, normalized string) (*models.Ingredient, error) {
	return r.FindOneForUpdate(ctx, Where("normalized_name", normalized))
}

// UsageCounts returns how many active recipes use each ingredient.
func (r *IngredientRepository) UsageCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	return usageByActiveRecipes(ctx, r.db, "recipe_ingredients", "ingredient_id", ids)
}

// ReassignRecipes points recipe ingredient rows at target.
func (r *IngredientRepository) ReassignRecipes(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	return reassignColumn(ctx, r.DB(ctx), "recipe_ingredients", "ingredient_id", sources, target)
}

// InUse reports whether any recipe row, active or not, references the ingredients.
func (r *IngredientRepository) InUse(ctx context.Context, ids []uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Table("recipe_ingredients").Where("ingredient_id IN ?", uuidValues(ids)).Count(&count).Error
	return count > 0, err
}

func reassignColumn(ctx context.Context, db *gorm.DB, table, col string, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	res := db.Exec(fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IN ?", table, col, col), target, uuidValues(sources))
	if res.Error != nil {
		return 0, fmt.Errorf("reassign %s.%s: %w", table, col, res.Error)
	}
	return res.RowsAffected, nil
}
