package repository

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecipeRepository struct {
	*Repository[models.Recipe]
	tagLinks      linkTable
	categoryLinks linkTable
}

func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{
		Repository:    NewRepository[models.Recipe](db),
		tagLinks:      linkTable{db: db, name: "recipe_tags", ownerCol: "recipe_id", refCol: "tag_id"},
		categoryLinks: linkTable{db: db, name: "recipe_categories", ownerCol: "recipe_id", refCol: "category_id"},
	}
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// WithDetails preloads every relation rendered by the recipe detail view.
func (r *RecipeRepository) WithDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("CoverImage").
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Preload("Steps.Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Preload("Steps.Images.File").
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Preload("Ingredients.Ingredient").
		Preload("Ingredients.Unit").
		Preload("Tags", activeOnly).
		Preload("Categories", activeOnly).
		Preload("GalleryLinks", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Preload("GalleryLinks.File")
}

// WithSummary preloads the relations shown in list views.
func (r *RecipeRepository) WithSummary(db *gorm.DB) *gorm.DB {
	return db.Preload("CoverImage").Preload("Tags", activeOnly).Preload("Categories", activeOnly)
}

// WithTags keeps recipes linked to any of the tags.
func (r *RecipeRepository) WithTags(tagIDs []uuid.UUID) Scope {
	return r.linkedTo("recipe_tags", "tag_id", tagIDs)
}

// WithCategories keeps recipes linked to any of the categories.
func (r *RecipeRepository) WithCategories(categoryIDs []uuid.UUID) Scope {
	return r.linkedTo("recipe_categories", "category_id", categoryIDs)
}

// WithIngredients keeps recipes using any of the ingredients.
func (r *RecipeRepository) WithIngredients(ingredientIDs []uuid.UUID) Scope {
	return r.linkedTo("recipe_ingredients", "ingredient_id", ingredientIDs)
}

func (r *RecipeRepository) linkedTo(table, col string, ids []uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(ids) == 0 {
			return db
		}
		sub := db.Session(&gorm.Session{NewDB: true}).Table(table).Select("recipe_id").Where(col+" IN ?", uuidValues(ids))
		return db.Where(r.Table()+".id IN (?)", sub)
	}
}

// GetDetailed loads one recipe with every relation.
func (r *RecipeRepository) GetDetailed(ctx context.Context, id uuid.UUID, mode models.ViewMode) (*models.Recipe, error) {
	return r.GetByID(ctx, id, mode, r.WithDetails)
}

// UpdateWithVersion writes fields only if the stored version still equals
// version and bumps it. Zero rows affected means another writer won.
func (r *RecipeRepository) UpdateWithVersion(ctx context.Context, id uuid.UUID, version int, fields map[string]any) (int64, error) {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["version"] = version + 1
	res := r.DB(ctx).Model(&models.Recipe{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *RecipeRepository) ReplaceTags(ctx context.Context, recipeID uuid.UUID, tagIDs []uuid.UUID) error {
	return r.tagLinks.Replace(ctx, recipeID, tagIDs)
}

func (r *RecipeRepository) ReplaceCategories(ctx context.Context, recipeID uuid.UUID, categoryIDs []uuid.UUID) error {
	return r.categoryLinks.Replace(ctx, recipeID, categoryIDs)
}

// ReplaceGallery stores fileIDs as the ordered gallery of the recipe.
func (r *RecipeRepository) ReplaceGallery(ctx context.Context, recipeID uuid.UUID, fileIDs []uuid.UUID) error {
	db := r.DB(ctx)
	if err := db.Where("recipe_id = ?", recipeID).Delete(&models.RecipeGalleryLink{}).Error; err != nil {
		return fmt.Errorf("clear gallery: %w", err)
	}
	fileIDs = UniqueIDs(fileIDs)
	if len(fileIDs) == 0 {
		return nil
	}
	links := make([]models.RecipeGalleryLink, len(fileIDs))
	for i, fid := range fileIDs {
		links[i] = models.RecipeGalleryLink{RecipeID: recipeID, FileID: fid, DisplayOrder: i}
	}
	return db.Create(&links).Error
}

// ReplaceIngredients deletes the recipe's ingredient rows and inserts items in order.
func (r *RecipeRepository) ReplaceIngredients(ctx context.Context, recipeID uuid.UUID, items []models.RecipeIngredient) error {
	db := r.DB(ctx)
	if err := db.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("clear ingredients: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.Nil
		items[i].RecipeID = recipeID
		items[i].DisplayOrder = i
		items[i].Ingredient = nil
		items[i].Unit = nil
	}
	return db.Create(&items).Error
}

// ReplaceSteps deletes the recipe's steps with their image links and
// inserts steps numbered from 1.
func (r *RecipeRepository) ReplaceSteps(ctx context.Context, recipeID uuid.UUID, steps []models.RecipeStep) error {
	db := r.DB(ctx)
	if err := r.deleteSteps(db, []uuid.UUID{recipeID}); err != nil {
		return err
	}
	for i := range steps {
		steps[i].ID = uuid.New()
		steps[i].RecipeID = recipeID
		steps[i].StepNumber = i + 1
		images := steps[i].Images
		steps[i].Images = nil
		if err := db.Create(&steps[i]).Error; err != nil {
			return fmt.Errorf("insert step %d: %w", i+1, err)
		}
		if len(images) == 0 {
			continue
		}
		seen := make(map[uuid.UUID]struct{}, len(images))
		links := make([]models.RecipeStepImage, 0, len(images))
		for _, img := range images {
			if _, ok := seen[img.FileID]; ok {
				continue
			}
			seen[img.FileID] = struct{}{}
			links = append(links, models.RecipeStepImage{StepID: steps[i].ID, FileID: img.FileID, DisplayOrder: len(links)})
		}
		if err := db.Create(&links).Error; err != nil {
			return fmt.Errorf("insert step %d images: %w", i+1, err)
		}
		steps[i].Images = links
	}
	return nil
}

func (r *RecipeRepository) deleteSteps(db *gorm.DB, recipeIDs []uuid.UUID) error {
	stepIDs := db.Session(&gorm.Session{NewDB: true}).Model(&models.RecipeStep{}).Select("id").Where("recipe_id IN ?", uuidValues(recipeIDs))
	if err := db.Where("step_id IN (?)", stepIDs).Delete(&models.RecipeStepImage{}).Error; err != nil {
		return fmt.Errorf("clear step images: %w", err)
	}
	if err := db.Where("recipe_id IN ?", uuidValues(recipeIDs)).Delete(&models.RecipeStep{}).Error; err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	return nil
}

// FileIDsOf returns every file referenced by the recipes.
func (r *RecipeRepository) FileIDsOf(ctx context.Context, recipeIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}
	db := r.DB(ctx)
	ids := uuidValues(recipeIDs)

	var covers []uuid.UUID
	if err := db.Model(&models.Recipe{}).Where("id IN ? AND cover_image_id IS NOT NULL", ids).Pluck("cover_image_id", &covers).Error; err != nil {
		return nil, err
	}
	var gallery []uuid.UUID
	if err := db.Model(&models.RecipeGalleryLink{}).Where("recipe_id IN ?", ids).Pluck("file_id", &gallery).Error; err != nil {
		return nil, err
	}
	var stepImages []uuid.UUID
	err := db.Model(&models.RecipeStepImage{}).
		Joins("JOIN recipe_steps ON recipe_steps.id = recipe_step_image_links.step_id").
		Where("recipe_steps.recipe_id IN ?", ids).
		Pluck("recipe_step_image_links.file_id", &stepImages).Error
	if err != nil {
		return nil, err
	}
	return UniqueIDs(append(append(covers, gallery...), stepImages...)), nil
}

// FilesStillReferenced returns which of fileIDs are referenced by a recipe outside excluded.
func (r *RecipeRepository) FilesStillReferenced(ctx context.Context, fileIDs, excluded []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{})
	if len(fileIDs) == 0 {
		return out, nil
	}
	db := r.DB(ctx)
	files := uuidValues(fileIDs)
	skip := uuidValues(append([]uuid.UUID{uuid.Nil}, excluded...))

	var hits []uuid.UUID
	var batch []uuid.UUID
	if err := db.Model(&models.Recipe{}).Where("cover_image_id IN ? AND id NOT IN ?", files, skip).Pluck("cover_image_id", &batch).Error; err != nil {
		return nil, err
	}
	hits = append(hits, batch...)
	batch = nil
	if err := db.Model(&models.RecipeGalleryLink{}).Where("file_id IN ? AND recipe_id NOT IN ?", files, skip).Pluck("file_id", &batch).Error; err != nil {
		return nil, err
	}
	hits = append(hits, batch...)
	batch = nil
	err := db.Model(&models.RecipeStepImage{}).
		Joins("JOIN recipe_steps ON recipe_steps.id = recipe_step_image_links.step_id").
		Where("recipe_step_image_links.file_id IN ? AND recipe_steps.recipe_id NOT IN ?", files, skip).
		Pluck("recipe_step_image_links.file_id", &batch).Error
	if err != nil {
		return nil, err
	}
	hits = append(hits, batch...)
	for _, id := range hits {
		out[id] = struct{}{}
	}
	return out, nil
}

// ClearLinks removes every child and link row of the recipes before a hard delete.
func (r *RecipeRepository) ClearLinks(ctx context.Context, recipeIDs []uuid.UUID) error {
	if len(recipeIDs) == 0 {
		return nil
	}
	db := r.DB(ctx)
	if err := r.deleteSteps(db, recipeIDs); err != nil {
		return err
	}
	ids := uuidValues(recipeIDs)
	if err := db.Where("recipe_id IN ?", ids).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("clear ingredients: %w", err)
	}
	if err := db.Where("recipe_id IN ?", ids).Delete(&models.RecipeGalleryLink{}).Error; err != nil {
		return fmt.Errorf("clear gallery: %w", err)
	}
	if err := r.tagLinks.DeleteByOwners(ctx, recipeIDs); err != nil {
		return err
	}
	return r.categoryLinks.DeleteByOwners(ctx, recipeIDs)
}
