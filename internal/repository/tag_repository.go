package repository

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagRepository struct {
	*Repository[models.Tag]
	recipeLinks linkTable
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{
		Repository:  NewRepository[models.Tag](db),
		recipeLinks: linkTable{db: db, name: "recipe_tags", ownerCol: "recipe_id", refCol: "tag_id"},
	}
}

func nameInsensitive(col clause.Column, name string) clause.Expression {
	return clause.Expr{SQL: "LOWER(?) = ?", Vars: []any{col, strings.ToLower(strings.TrimSpace(name))}}
}

// FindByName matches case-insensitively among active tags.
func (r *TagRepository) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	return r.FindOne(ctx, Filter{}, models.ViewActive, func(db *gorm.DB) *gorm.DB {
		return db.Where(nameInsensitive(r.Column("name"), name))
	})
}

// FindByNameForUpdate is FindByName with a row lock.
func (r *TagRepository) FindByNameForUpdate(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	q := r.Query(ctx, models.ViewActive, Filter{}).Where(nameInsensitive(r.Column("name"), name))
	if r.supportsRowLocks() {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	if err := q.Take(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// UsageCounts returns how many active recipes reference each tag.
func (r *TagRepository) UsageCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	return usageByActiveRecipes(ctx, r.db, "recipe_tags", "tag_id", ids)
}

// ReassignRecipes moves recipe links from sources to target.
func (r *TagRepository) ReassignRecipes(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	return r.recipeLinks.Reassign(ctx, sources, target)
}

// ClearLinks removes every recipe link of the tags.
func (r *TagRepository) ClearLinks(ctx context.Context, ids []uuid.UUID) error {
	return r.recipeLinks.DeleteByRefs(ctx, ids)
}
