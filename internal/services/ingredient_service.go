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

type IngredientInput struct {
	Name        string  `json:"name" binding:"required,max=128"`
	PluralName  *string `json:"plural_name" binding:"omitempty,max=128"`
	Description *string `json:"description"`
}

// IngredientService manages ingredients. normalized_name is unique among active rows.
type IngredientService interface {
	CreateIngredient(ctx context.Context, uc *models.UserContext, in IngredientInput) (*models.Ingredient, error)
	UpdateIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID, in IngredientInput) (*models.Ingredient, error)
	GetIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Ingredient, error)
	ListIngredients(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Ingredient], error)
	DeleteIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	// PermanentDeleteIngredients refuses while any recipe row, deleted or not, still points at them.
	PermanentDeleteIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	MergeIngredients(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Ingredient, error)
	FindOrCreateByName(ctx context.Context, uc *models.UserContext, name string) (*models.Ingredient, error)
}

type ingredientService struct {
	db          *gorm.DB
	ingredients *repository.IngredientRepository
	lc          *lifecycle[models.Ingredient]
}

func NewIngredientService(db *gorm.DB, ingredients *repository.IngredientRepository) IngredientService {
	return &ingredientService{
		db:          db,
		ingredients: ingredients,
		lc: &lifecycle[models.Ingredient]{
			db:     db,
			repo:   ingredients.Repository,
			entity: "ingredient",
			policy: PolicyFor(ResourceIngredient),
			usage:  ingredients.UsageCounts,
		},
	}
}

func (s *ingredientService) ensureNameFree(ctx context.Context, normalized string, self uuid.UUID) error {
	existing, err := s.ingredients.FindByNormalizedName(ctx, normalized)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("ingredient %q already exists", existing.Name)
	}
	return nil
}

func (s *ingredientService) CreateIngredient(ctx context.Context, uc *models.UserContext, in IngredientInput) (*models.Ingredient, error) {
	if err := authorize(PolicyFor(ResourceIngredient).CanCreate(uc), "create", "ingredient"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, models.NewValidationError("ingredient name is required")
	}
	ing := &models.Ingredient{
		Name:           name,
		NormalizedName: normalized,
		PluralName:     in.PluralName,
		Description:    in.Description,
	}
	ing.StampCreate(uc.ActorID())

	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureNameFree(ctx, normalized, uuid.Nil); err != nil {
			return err
		}
		return s.ingredients.Create(ctx, ing)
	})
	if err != nil {
		return nil, translate(err, "ingredient", name)
	}
	return ing, nil
}

func (s *ingredientService) UpdateIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID, in IngredientInput) (*models.Ingredient, error) {
	name := strings.TrimSpace(in.Name)
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, models.NewValidationError("ingredient name is required")
	}
	var ing *models.Ingredient
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		ing, err = s.ingredients.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceIngredient).CanUpdate(uc, ing.OwnerID()), "update", "ingredient"); err != nil {
			return err
		}
		if normalized != ing.NormalizedName {
			if err := s.ensureNameFree(ctx, normalized, id); err != nil {
				return err
			}
		}
		ing.Name = name
		ing.NormalizedName = normalized
		ing.PluralName = in.PluralName
		ing.Description = in.Description
		ing.StampUpdate(uc.ActorID())
		return s.ingredients.Save(ctx, ing)
	})
	if err != nil {
		return nil, translate(err, "ingredient", id)
	}
	return ing, nil
}

func (s *ingredientService) GetIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Ingredient, error) {
	return s.lc.get(ctx, uc, id, mode)
}

func (s *ingredientService) ListIngredients(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Ingredient], error) {
	return s.lc.list(ctx, uc, q)
}

func (s *ingredientService) DeleteIngredient(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if _, err := s.ingredients.GetByID(ctx, id, models.ViewActive); err != nil {
		return translate(err, "ingredient", id)
	}
	_, err := s.lc.softDelete(ctx, uc, []uuid.UUID{id})
	return err
}

func (s *ingredientService) BatchDeleteIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.softDelete(ctx, uc, ids)
}

func (s *ingredientService) RestoreIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.restore(ctx, uc, ids)
}

func (s *ingredientService) PermanentDeleteIngredients(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.permanentDelete(ctx, uc, ids, func(ctx context.Context, _ []models.Ingredient) error {
		inUse, err := s.ingredients.InUse(ctx, ids)
		if err != nil {
			return err
		}
		if inUse {
			return models.NewBusinessRuleError("cannot permanently delete: ingredient is still referenced by recipes")
		}
		return nil
	})
}

func (s *ingredientService) MergeIngredients(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Ingredient, error) {
	if err := authorize(PolicyFor(ResourceIngredient).CanUpdate(uc, nil), "merge", "ingredient"); err != nil {
		return nil, err
	}
	var target *models.Ingredient
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		sources, err := s.lc.mergeTargets(ctx, in)
		if err != nil {
			return err
		}
		moved, err := s.ingredients.ReassignRecipes(ctx, sources, in.TargetID)
		if err != nil {
			return err
		}
		if _, err := s.ingredients.SoftDeleteByIDs(ctx, sources, uc.ActorID()); err != nil {
			return err
		}
		log.WithFields(log.Fields{"target": in.TargetID, "sources": len(sources), "rows_moved": moved}).Info("Ingredients merged")
		target, err = s.ingredients.GetByID(ctx, in.TargetID, models.ViewActive)
		return err
	})
	if err != nil {
		return nil, translate(err, "ingredient", in.TargetID)
	}
	return target, nil
}

func (s *ingredientService) FindOrCreateByName(ctx context.Context, uc *models.UserContext, name string) (*models.Ingredient, error) {
	name = strings.TrimSpace(name)
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, models.NewValidationError("ingredient name is required")
	}
	var ing *models.Ingredient
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.ingredients.FindByNormalizedNameForUpdate(ctx, normalized)
		ok, err := found(existing, err)
		if err != nil {
			return err
		}
		if ok {
			ing = existing
			return nil
		}
		ing = &models.Ingredient{Name: name, NormalizedName: normalized}
		ing.StampCreate(uc.ActorID())
		return s.ingredients.Create(ctx, ing)
	})
	if err != nil {
		return nil, translate(err, "ingredient", name)
	}
	return ing, nil
}
