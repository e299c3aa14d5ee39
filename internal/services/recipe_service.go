package services

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RecipeIngredientInput struct {
	// IngredientID wins over Name; Name finds or creates the ingredient.
	IngredientID *uuid.UUID `json:"ingredient_id"`
	Name         string     `json:"name" binding:"max=128"`
	UnitID       *uuid.UUID `json:"unit_id"`
	Quantity     *float64   `json:"quantity" binding:"omitempty,gte=0"`
	Group        *string    `json:"group" binding:"omitempty,max=64"`
	Note         *string    `json:"note"`
}

type RecipeStepInput struct {
	Instruction string      `json:"instruction" binding:"required"`
	Duration    *string     `json:"duration" binding:"omitempty,max=64"`
	ImageIDs    []uuid.UUID `json:"image_ids"`
}

// RecipeInput is a full recipe document. Updates replace every relation.
type RecipeInput struct {
	Title           string                  `json:"title" binding:"required,max=255"`
	Description     *string                 `json:"description"`
	PrepTime        *string                 `json:"prep_time" binding:"omitempty,max=64"`
	CookTime        *string                 `json:"cook_time" binding:"omitempty,max=64"`
	Servings        *string                 `json:"servings" binding:"omitempty,max=64"`
	Difficulty      *string                 `json:"difficulty" binding:"omitempty,max=32"`
	Equipment       *string                 `json:"equipment"`
	AuthorNotes     *string                 `json:"author_notes"`
	CoverImageID    *uuid.UUID              `json:"cover_image_id"`
	GalleryImageIDs []uuid.UUID             `json:"gallery_image_ids"`
	Steps           []RecipeStepInput       `json:"steps" binding:"dive"`
	Ingredients     []RecipeIngredientInput `json:"ingredients" binding:"dive"`
	// Tags mixes tag ids and tag names; unknown names are created.
	Tags        []string    `json:"tags"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	// Version must match the stored version on update when set.
	Version *int `json:"version"`
}

// RecipeListQuery narrows a page of recipes by linked taxonomy.
type RecipeListQuery struct {
	repository.PageQuery
	TagIDs        []uuid.UUID
	CategoryIDs   []uuid.UUID
	IngredientIDs []uuid.UUID
}

type RecipeService interface {
	CreateRecipe(ctx context.Context, uc *models.UserContext, in RecipeInput) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID, in RecipeInput) (*models.Recipe, error)
	GetRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Recipe, error)
	ListRecipes(ctx context.Context, uc *models.UserContext, q RecipeListQuery) (*repository.Page[models.Recipe], error)
	DeleteRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	// PermanentDeleteRecipes removes deleted recipes and releases files no other recipe uses.
	PermanentDeleteRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
}

// RecipeDeps groups the collaborators of the recipe service.
type RecipeDeps struct {
	Recipes     *repository.RecipeRepository
	Tags        *repository.TagRepository
	Categories  *repository.CategoryRepository
	Units       *repository.UnitRepository
	Ingredients *repository.IngredientRepository
	TagService  TagService
	Ingredient  IngredientService
	FileRecords FileRecordService
	Files       *storage.Factory
}

type recipeService struct {
	db     *gorm.DB
	deps   RecipeDeps
	policy Policy
}

func NewRecipeService(db *gorm.DB, deps RecipeDeps) RecipeService {
	return &recipeService{db: db, deps: deps, policy: PolicyFor(ResourceRecipe)}
}

// splitTagRefs separates tag ids from tag names.
func splitTagRefs(refs []string) (ids []uuid.UUID, names []string) {
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
			continue
		}
		names = append(names, ref)
	}
	return ids, names
}

func (s *recipeService) resolveTags(ctx context.Context, uc *models.UserContext, refs []string) ([]uuid.UUID, error) {
	ids, names := splitTagRefs(refs)
	ids = repository.UniqueIDs(ids)
	ok, err := s.deps.Tags.AreIDsValid(ctx, ids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("one or more tag ids do not exist")
	}
	if len(names) > 0 {
		tags, err := s.deps.TagService.FindOrCreateByNames(ctx, uc, names)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			ids = append(ids, t.ID)
		}
	}
	return repository.UniqueIDs(ids), nil
}

func (s *recipeService) resolveIngredients(ctx context.Context, uc *models.UserContext, in []RecipeIngredientInput) ([]models.RecipeIngredient, error) {
	var ingredientIDs, unitIDs []uuid.UUID
	items := make([]models.RecipeIngredient, 0, len(in))
	for i, item := range in {
		row := models.RecipeIngredient{
			UnitID:   item.UnitID,
			Quantity: item.Quantity,
			Group:    item.Group,
			Note:     item.Note,
		}
		switch {
		case item.IngredientID != nil && *item.IngredientID != uuid.Nil:
			row.IngredientID = *item.IngredientID
			ingredientIDs = append(ingredientIDs, row.IngredientID)
		case strings.TrimSpace(item.Name) != "":
			ing, err := s.deps.Ingredient.FindOrCreateByName(ctx, uc, item.Name)
			if err != nil {
				return nil, err
			}
			row.IngredientID = ing.ID
		default:
			return nil, models.NewValidationError("ingredient %d needs an ingredient_id or a name", i+1)
		}
		if item.UnitID != nil {
			unitIDs = append(unitIDs, *item.UnitID)
		}
		items = append(items, row)
	}

	ok, err := s.deps.Ingredients.AreIDsValid(ctx, ingredientIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("one or more ingredient ids do not exist")
	}
	ok, err = s.deps.Units.AreIDsValid(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("one or more unit ids do not exist")
	}
	return items, nil
}

func (s *recipeService) validateCategories(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	ids = repository.UniqueIDs(ids)
	ok, err := s.deps.Categories.AreIDsValid(ctx, ids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("one or more category ids do not exist")
	}
	return ids, nil
}

func buildSteps(in []RecipeStepInput) ([]models.RecipeStep, error) {
	steps := make([]models.RecipeStep, 0, len(in))
	for i, st := range in {
		text := strings.TrimSpace(st.Instruction)
		if text == "" {
			return nil, models.NewValidationError("step %d has no instruction", i+1)
		}
		step := models.RecipeStep{Instruction: text, Duration: st.Duration}
		for _, id := range repository.UniqueIDs(st.ImageIDs) {
			step.Images = append(step.Images, models.RecipeStepImage{FileID: id})
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// referencedFiles returns every file id the input points at.
func (in RecipeInput) referencedFiles() []uuid.UUID {
	var ids []uuid.UUID
	if in.CoverImageID != nil {
		ids = append(ids, *in.CoverImageID)
	}
	ids = append(ids, in.GalleryImageIDs...)
	for _, st := range in.Steps {
		ids = append(ids, st.ImageIDs...)
	}
	return repository.UniqueIDs(ids)
}

func (in RecipeInput) apply(r *models.Recipe) {
	r.Title = strings.TrimSpace(in.Title)
	r.Description = in.Description
	r.PrepTime = in.PrepTime
	r.CookTime = in.CookTime
	r.Servings = in.Servings
	r.Difficulty = in.Difficulty
	r.Equipment = in.Equipment
	r.AuthorNotes = in.AuthorNotes
	r.CoverImageID = nil
	if in.CoverImageID != nil && *in.CoverImageID != uuid.Nil {
		id := *in.CoverImageID
		r.CoverImageID = &id
	}
}

func (in RecipeInput) fields() map[string]any {
	var r models.Recipe
	in.apply(&r)
	return map[string]any{
		"title":          r.Title,
		"description":    r.Description,
		"prep_time":      r.PrepTime,
		"cook_time":      r.CookTime,
		"servings":       r.Servings,
		"difficulty":     r.Difficulty,
		"equipment":      r.Equipment,
		"author_notes":   r.AuthorNotes,
		"cover_image_id": r.CoverImageID,
	}
}

// writeRelations replaces every relation of recipeID from in.
func (s *recipeService) writeRelations(ctx context.Context, uc *models.UserContext, recipeID uuid.UUID, in RecipeInput) error {
	tagIDs, err := s.resolveTags(ctx, uc, in.Tags)
	if err != nil {
		return err
	}
	categoryIDs, err := s.validateCategories(ctx, in.CategoryIDs)
	if err != nil {
		return err
	}
	ingredients, err := s.resolveIngredients(ctx, uc, in.Ingredients)
	if err != nil {
		return err
	}
	steps, err := buildSteps(in.Steps)
	if err != nil {
		return err
	}
	if err := s.deps.FileRecords.MarkAssociated(ctx, in.referencedFiles()); err != nil {
		return err
	}

	recipes := s.deps.Recipes
	if err := recipes.ReplaceSteps(ctx, recipeID, steps); err != nil {
		return err
	}
	if err := recipes.ReplaceIngredients(ctx, recipeID, ingredients); err != nil {
		return err
	}
	if err := recipes.ReplaceTags(ctx, recipeID, tagIDs); err != nil {
		return err
	}
	if err := recipes.ReplaceCategories(ctx, recipeID, categoryIDs); err != nil {
		return err
	}
	return recipes.ReplaceGallery(ctx, recipeID, in.GalleryImageIDs)
}

// releaseFiles unassociates files among candidates that no recipe outside
// excluded still references.
func (s *recipeService) releaseFiles(ctx context.Context, candidates, excluded []uuid.UUID) error {
	candidates = repository.UniqueIDs(candidates)
	if len(candidates) == 0 {
		return nil
	}
	inUse, err := s.deps.Recipes.FilesStillReferenced(ctx, candidates, excluded)
	if err != nil {
		return err
	}
	var release []uuid.UUID
	for _, id := range candidates {
		if _, ok := inUse[id]; !ok {
			release = append(release, id)
		}
	}
	return s.deps.FileRecords.MarkUnassociated(ctx, release)
}

func (s *recipeService) CreateRecipe(ctx context.Context, uc *models.UserContext, in RecipeInput) (*models.Recipe, error) {
	if err := authorize(s.policy.CanCreate(uc), "create", "recipe"); err != nil {
		return nil, err
	}
	recipe := &models.Recipe{Version: 1}
	in.apply(recipe)
	if recipe.Title == "" {
		return nil, models.NewValidationError("recipe title is required")
	}
	recipe.StampCreate(uc.ActorID())

	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.deps.Recipes.Create(ctx, recipe); err != nil {
			return err
		}
		return s.writeRelations(ctx, uc, recipe.ID, in)
	})
	if err != nil {
		return nil, translate(err, "recipe", recipe.Title)
	}
	log.WithFields(log.Fields{"recipe_id": recipe.ID, "user_id": recipe.CreatedBy}).Info("Recipe created")
	return s.load(ctx, recipe.ID, models.ViewActive)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID, in RecipeInput) (*models.Recipe, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.NewValidationError("recipe title is required")
	}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		current, err := s.deps.Recipes.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(s.policy.CanUpdate(uc, current.OwnerID()), "update", "recipe"); err != nil {
			return err
		}
		version := current.Version
		if in.Version != nil {
			if *in.Version != current.Version {
				return models.NewConcurrencyConflictError()
			}
			version = *in.Version
		}
		previous, err := s.deps.Recipes.FileIDsOf(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}

		fields := in.fields()
		fields["updated_by"] = uc.ActorID()
		n, err := s.deps.Recipes.UpdateWithVersion(ctx, id, version, fields)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewConcurrencyConflictError()
		}
		if err := s.writeRelations(ctx, uc, id, in); err != nil {
			return err
		}

		keep := make(map[uuid.UUID]struct{})
		for _, f := range in.referencedFiles() {
			keep[f] = struct{}{}
		}
		var dropped []uuid.UUID
		for _, f := range previous {
			if _, ok := keep[f]; !ok {
				dropped = append(dropped, f)
			}
		}
		return s.releaseFiles(ctx, dropped, []uuid.UUID{id})
	})
	if err != nil {
		return nil, translate(err, "recipe", id)
	}
	return s.load(ctx, id, models.ViewActive)
}

func (s *recipeService) load(ctx context.Context, id uuid.UUID, mode models.ViewMode) (*models.Recipe, error) {
	recipe, err := s.deps.Recipes.GetDetailed(ctx, id, mode)
	if err != nil {
		return nil, translate(err, "recipe", id)
	}
	s.fillURLs(recipe)
	return recipe, nil
}

func (s *recipeService) fillURLs(r *models.Recipe) {
	withURL(s.deps.Files, r.CoverImage)
	for i := range r.GalleryLinks {
		withURL(s.deps.Files, r.GalleryLinks[i].File)
	}
	for i := range r.Steps {
		for j := range r.Steps[i].Images {
			withURL(s.deps.Files, r.Steps[i].Images[j].File)
		}
	}
}

func (s *recipeService) GetRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Recipe, error) {
	if err := authorize(s.policy.CanRead(uc), "read", "recipe"); err != nil {
		return nil, err
	}
	return s.load(ctx, id, mode)
}

func (s *recipeService) ListRecipes(ctx context.Context, uc *models.UserContext, q RecipeListQuery) (*repository.Page[models.Recipe], error) {
	if err := authorize(s.policy.CanRead(uc), "list", "recipe"); err != nil {
		return nil, err
	}
	recipes := s.deps.Recipes
	page := q.PageQuery
	page.Scopes = append(page.Scopes,
		recipes.WithTags(q.TagIDs),
		recipes.WithCategories(q.CategoryIDs),
		recipes.WithIngredients(q.IngredientIDs),
	)
	page.Preload = recipes.WithSummary
	result, err := recipes.FindPaged(ctx, page)
	if err != nil {
		return nil, err
	}
	for i := range result.Items {
		withURL(s.deps.Files, result.Items[i].CoverImage)
	}
	return result, nil
}

// authorizeEach checks the owner-scoped permission on every recipe.
func (s *recipeService) authorizeEach(uc *models.UserContext, recipes []models.Recipe, action string, allowed func(*models.UserContext, *uuid.UUID) bool) error {
	for _, r := range recipes {
		if !allowed(uc, r.OwnerID()) {
			return models.NewPermissionDeniedError("you are not allowed to %s recipe %q", action, r.Title)
		}
	}
	return nil
}

func (s *recipeService) DeleteRecipe(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	_, err := s.BatchDeleteRecipes(ctx, uc, []uuid.UUID{id})
	if err != nil && models.IsKind(err, models.KindNotFound) {
		return models.NewNotFoundError("recipe", id)
	}
	return err
}

func (s *recipeService) BatchDeleteRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		items, err := s.deps.Recipes.GetByIDs(ctx, ids, models.ViewActive)
		if err != nil {
			return err
		}
		if len(items) != len(ids) {
			return missingError("recipe", models.ViewActive)
		}
		if err := s.authorizeEach(uc, items, "delete", s.policy.CanDelete); err != nil {
			return err
		}
		affected, err = s.deps.Recipes.SoftDeleteByIDs(ctx, ids, uc.ActorID())
		return err
	})
	return affected, translate(err, "recipe", ids)
}

func (s *recipeService) RestoreRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		items, err := s.deps.Recipes.GetByIDs(ctx, ids, models.ViewDeleted)
		if err != nil {
			return err
		}
		if len(items) != len(ids) {
			return missingError("recipe", models.ViewDeleted)
		}
		if err := s.authorizeEach(uc, items, "restore", s.policy.CanUpdate); err != nil {
			return err
		}
		affected, err = s.deps.Recipes.RestoreByIDs(ctx, ids, uc.ActorID())
		return err
	})
	return affected, translate(err, "recipe", ids)
}

func (s *recipeService) PermanentDeleteRecipes(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		items, err := s.deps.Recipes.GetByIDs(ctx, ids, models.ViewDeleted)
		if err != nil {
			return err
		}
		if len(items) != len(ids) {
			return missingError("recipe", models.ViewDeleted)
		}
		if err := s.authorizeEach(uc, items, "permanently delete", s.policy.CanDelete); err != nil {
			return err
		}
		files, err := s.deps.Recipes.FileIDsOf(ctx, ids)
		if err != nil {
			return err
		}
		if err := s.deps.Recipes.ClearLinks(ctx, ids); err != nil {
			return err
		}
		affected, err = s.deps.Recipes.HardDeleteByIDs(ctx, ids)
		if err != nil {
			return err
		}
		return s.releaseFiles(ctx, files, ids)
	})
	if err != nil {
		return 0, translate(err, "recipe", ids)
	}
	log.WithFields(log.Fields{"recipes": affected}).Info("Recipes permanently deleted")
	return affected, nil
}
