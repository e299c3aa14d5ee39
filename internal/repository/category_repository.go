package repository

import (
	"context"
	"sort"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	*Repository[models.Category]
	recipeLinks linkTable
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{
		Repository:  NewRepository[models.Category](db),
		recipeLinks: linkTable{db: db, name: "recipe_categories", ownerCol: "recipe_id", refCol: "category_id"},
	}
}

// FindBySlug looks up a category by slug in the given view.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string, mode models.ViewMode) (*models.Category, error) {
	return r.FindOne(ctx, Where("slug", slug), mode)
}

// DescendantIDs walks the parent links below id among active categories.
func (r *CategoryRepository) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var rows []struct {
		ID       uuid.UUID
		ParentID *uuid.UUID
	}
	if err := r.Query(ctx, models.ViewActive, Filter{}).Select("id", "parent_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	children := make(map[uuid.UUID][]uuid.UUID)
	for _, row := range rows {
		if row.ParentID != nil {
			children[*row.ParentID] = append(children[*row.ParentID], row.ID)
		}
	}

	var out []uuid.UUID
	seen := map[uuid.UUID]struct{}{id: {}}
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// Tree returns the active categories as a forest ordered by name.
func (r *CategoryRepository) Tree(ctx context.Context) ([]*models.Category, error) {
	var all []*models.Category
	if err := r.Query(ctx, models.ViewActive, Filter{}).Order("name ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	return BuildCategoryTree(all), nil
}

// BuildCategoryTree links categories to their parents. Categories whose
// parent is absent become roots.
func BuildCategoryTree(all []*models.Category) []*models.Category {
	byID := make(map[uuid.UUID]*models.Category, len(all))
	for _, c := range all {
		c.Children = nil
		byID[c.ID] = c
	}
	roots := []*models.Category{}
	for _, c := range all {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok && parent != c {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	return roots
}

// UsageCounts returns how many active recipes reference each category.
func (r *CategoryRepository) UsageCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	return usageByActiveRecipes(ctx, r.db, "recipe_categories", "category_id", ids)
}

// ReassignRecipes moves recipe links from sources to target.
func (r *CategoryRepository) ReassignRecipes(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	return r.recipeLinks.Reassign(ctx, sources, target)
}

// ReparentChildren moves the children of sources under target.
func (r *CategoryRepository) ReparentChildren(ctx context.Context, sources []uuid.UUID, target uuid.UUID) error {
	if len(sources) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.Category{}).
		Where("parent_id IN ? AND id <> ?", uuidValues(sources), target).
		UpdateColumn("parent_id", target).Error
}

// ClearLinks removes recipe links and detaches children of the categories.
func (r *CategoryRepository) ClearLinks(ctx context.Context, ids []uuid.UUID) error {
	if err := r.recipeLinks.DeleteByRefs(ctx, ids); err != nil {
		return err
	}
	return r.DB(ctx).Model(&models.Category{}).
		Where("parent_id IN ?", uuidValues(ids)).
		UpdateColumn("parent_id", nil).Error
}
