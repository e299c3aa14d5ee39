package services

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CategoryInput struct {
	Name        string     `json:"name" binding:"required,max=128"`
	Slug        string     `json:"slug" binding:"omitempty,max=128"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// CategoryService manages the category tree. Slugs are unique among active categories.
type CategoryService interface {
	CreateCategory(ctx context.Context, uc *models.UserContext, in CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID, in CategoryInput) (*models.Category, error)
	GetCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Category, error)
	ListCategories(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Category], error)
	Tree(ctx context.Context, uc *models.UserContext) ([]*models.Category, error)
	DeleteCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	PermanentDeleteCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	// MergeCategories moves recipe links and child categories of the sources to the target.
	MergeCategories(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Category, error)
}

type categoryService struct {
	db         *gorm.DB
	categories *repository.CategoryRepository
	lc         *lifecycle[models.Category]
}

func NewCategoryService(db *gorm.DB, categories *repository.CategoryRepository) CategoryService {
	return &categoryService{
		db:         db,
		categories: categories,
		lc: &lifecycle[models.Category]{
			db:     db,
			repo:   categories.Repository,
			entity: "category",
			policy: PolicyFor(ResourceCategory),
			usage:  categories.UsageCounts,
			unlink: categories.ClearLinks,
		},
	}
}

func (s *categoryService) slugFor(in CategoryInput) (string, error) {
	raw := strings.TrimSpace(in.Slug)
	if raw == "" {
		raw = in.Name
	}
	slug := Slugify(raw)
	if slug == "" {
		return "", models.NewValidationError("category slug cannot be derived from %q", raw)
	}
	return slug, nil
}

func (s *categoryService) ensureSlugFree(ctx context.Context, slug string, self uuid.UUID) error {
	existing, err := s.categories.FindBySlug(ctx, slug, models.ViewActive)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("category slug %q already exists", slug)
	}
	return nil
}

// validateParent checks that parent exists and is neither self nor below self.
// self is uuid.Nil on create.
func (s *categoryService) validateParent(ctx context.Context, self uuid.UUID, parent *uuid.UUID) error {
	if parent == nil || *parent == uuid.Nil {
		return nil
	}
	if *parent == self {
		return models.NewBusinessRuleError("a category cannot be its own parent")
	}
	if _, err := s.categories.GetByID(ctx, *parent, models.ViewActive); err != nil {
		return translate(err, "parent category", *parent)
	}
	if self == uuid.Nil {
		return nil
	}
	descendants, err := s.categories.DescendantIDs(ctx, self)
	if err != nil {
		return err
	}
	for _, id := range descendants {
		if id == *parent {
			return models.NewBusinessRuleError("a category cannot be moved under one of its descendants")
		}
	}
	return nil
}

func normalizeParent(parent *uuid.UUID) *uuid.UUID {
	if parent == nil || *parent == uuid.Nil {
		return nil
	}
	return parent
}

func (s *categoryService) CreateCategory(ctx context.Context, uc *models.UserContext, in CategoryInput) (*models.Category, error) {
	if err := authorize(PolicyFor(ResourceCategory).CanCreate(uc), "create", "category"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("category name is required")
	}
	slug, err := s.slugFor(in)
	if err != nil {
		return nil, err
	}
	cat := &models.Category{
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		ParentID:    normalizeParent(in.ParentID),
	}
	cat.StampCreate(uc.ActorID())

	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureSlugFree(ctx, slug, uuid.Nil); err != nil {
			return err
		}
		if err := s.validateParent(ctx, uuid.Nil, cat.ParentID); err != nil {
			return err
		}
		return s.categories.Create(ctx, cat)
	})
	if err != nil {
		return nil, translate(err, "category", slug)
	}
	return cat, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("category name is required")
	}
	slug, err := s.slugFor(in)
	if err != nil {
		return nil, err
	}
	var cat *models.Category
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		cat, err = s.categories.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceCategory).CanUpdate(uc, cat.OwnerID()), "update", "category"); err != nil {
			return err
		}
		if slug != cat.Slug {
			if err := s.ensureSlugFree(ctx, slug, id); err != nil {
				return err
			}
		}
		parent := normalizeParent(in.ParentID)
		if err := s.validateParent(ctx, id, parent); err != nil {
			return err
		}
		cat.Name = name
		cat.Slug = slug
		cat.Description = in.Description
		cat.ParentID = parent
		cat.StampUpdate(uc.ActorID())
		return s.categories.Save(ctx, cat)
	})
	if err != nil {
		return nil, translate(err, "category", id)
	}
	return cat, nil
}

func (s *categoryService) GetCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Category, error) {
	return s.lc.get(ctx, uc, id, mode)
}

func (s *categoryService) ListCategories(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Category], error) {
	return s.lc.list(ctx, uc, q)
}

func (s *categoryService) Tree(ctx context.Context, uc *models.UserContext) ([]*models.Category, error) {
	if err := authorize(PolicyFor(ResourceCategory).CanRead(uc), "read", "category"); err != nil {
		return nil, err
	}
	return s.categories.Tree(ctx)
}

func (s *categoryService) DeleteCategory(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if _, err := s.categories.GetByID(ctx, id, models.ViewActive); err != nil {
		return translate(err, "category", id)
	}
	_, err := s.lc.softDelete(ctx, uc, []uuid.UUID{id})
	return err
}

func (s *categoryService) BatchDeleteCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.softDelete(ctx, uc, ids)
}

func (s *categoryService) RestoreCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	if err := authorize(mayAct(uc, PolicyFor(ResourceCategory).CanUpdate), "restore", "category"); err != nil {
		return 0, err
	}
	var affected int64
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		items, err := s.categories.GetByIDs(ctx, repository.UniqueIDs(ids), models.ViewDeleted)
		if err != nil {
			return err
		}
		for _, c := range items {
			if err := s.ensureSlugFree(ctx, c.Slug, c.ID); err != nil {
				return err
			}
		}
		affected, err = s.lc.restore(ctx, uc, ids)
		return err
	})
	return affected, translate(err, "category", ids)
}

func (s *categoryService) PermanentDeleteCategories(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.permanentDelete(ctx, uc, ids, nil)
}

func (s *categoryService) MergeCategories(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Category, error) {
	if err := authorize(PolicyFor(ResourceCategory).CanUpdate(uc, nil), "merge", "category"); err != nil {
		return nil, err
	}
	var target *models.Category
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		sources, err := s.lc.mergeTargets(ctx, in)
		if err != nil {
			return err
		}
		// the target must not sit below a source, or reparenting would create a cycle
		for _, src := range sources {
			below, err := s.categories.DescendantIDs(ctx, src)
			if err != nil {
				return err
			}
			for _, id := range below {
				if id == in.TargetID {
					return models.NewBusinessRuleError("cannot merge a category into one of its descendants")
				}
			}
		}
		moved, err := s.categories.ReassignRecipes(ctx, sources, in.TargetID)
		if err != nil {
			return err
		}
		if err := s.categories.ReparentChildren(ctx, sources, in.TargetID); err != nil {
			return err
		}
		if _, err := s.categories.SoftDeleteByIDs(ctx, sources, uc.ActorID()); err != nil {
			return err
		}
		log.WithFields(log.Fields{"target": in.TargetID, "sources": len(sources), "links_moved": moved}).Info("Categories merged")
		target, err = s.categories.GetByID(ctx, in.TargetID, models.ViewActive)
		return err
	})
	if err != nil {
		return nil, translate(err, "category", in.TargetID)
	}
	return target, nil
}
