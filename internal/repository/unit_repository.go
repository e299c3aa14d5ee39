package repository

import (
	"context"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UnitRepository struct {
	*Repository[models.Unit]
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{Repository: NewRepository[models.Unit](db)}
}

// FindByName matches case-insensitively among active units.
func (r *UnitRepository) FindByName(ctx context.Context, name string) (*models.Unit, error) {
	return r.FindOne(ctx, Filter{}, models.ViewActive, func(db *gorm.DB) *gorm.DB {
		return db.Where(nameInsensitive(r.Column("name"), name))
	})
}

// UsageCounts returns how many active recipes use each unit.
func (r *UnitRepository) UsageCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	return usageByActiveRecipes(ctx, r.db, "recipe_ingredients", "unit_id", ids)
}

// ReassignRecipes points recipe ingredient rows using sources at target.
func (r *UnitRepository) ReassignRecipes(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	return reassignColumn(ctx, r.DB(ctx), "recipe_ingredients", "unit_id", sources, target)
}

// DetachFromRecipes nulls the unit of every recipe ingredient using ids.
func (r *UnitRepository) DetachFromRecipes(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB(ctx).Exec("UPDATE recipe_ingredients SET unit_id = NULL WHERE unit_id IN ?", uuidValues(ids)).Error
}
