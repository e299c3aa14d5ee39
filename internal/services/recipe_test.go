package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memberPerms = []string{
	"recipe:read", "recipe:create", "recipe:update:own", "recipe:delete:own",
	"tag:read", "tag:create", "unit:read", "ingredient:read", "ingredient:create",
	"category:read", "file:read", "file:create", "file:update:own", "file:delete:own",
}

func ptr[T any](v T) *T { return &v }

func tagNames(tags []models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

func (s *stack) associated(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	rec, err := s.recordRepo.GetByID(context.Background(), id, models.ViewAll)
	require.NoError(t, err)
	return rec.IsAssociated
}

func TestCreateRecipeWithMixedTags(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	existing, err := s.tags.CreateTag(ctx, uc, TagInput{Name: "vegan"})
	require.NoError(t, err)

	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title: "Oat bowl",
		Tags:  []string{"breakfast", existing.ID.String(), "Breakfast"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"breakfast", "vegan"}, tagNames(recipe.Tags))
	assert.Equal(t, 1, recipe.Version)
	require.NotNil(t, recipe.CreatedBy)
	assert.Equal(t, uc.UserID(), *recipe.CreatedBy)

	created, err := s.tagRepo.FindOne(ctx, repository.Where("name", "breakfast"), models.ViewActive)
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)
}

func TestCreateRecipeWithIngredientsAndSteps(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.actor(t, "cook", memberPerms...)

	admin := s.admin(t)
	cup, err := s.units.CreateUnit(ctx, admin, UnitInput{Name: "cup"})
	require.NoError(t, err)
	img := s.uploadImage(t, uc)

	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title: "Rice",
		Ingredients: []RecipeIngredientInput{
			{Name: "Basmati Rice", UnitID: &cup.ID, Quantity: ptr(2.0)},
			{Name: "salt", Note: ptr("to taste")},
		},
		Steps: []RecipeStepInput{
			{Instruction: "Rinse the rice"},
			{Instruction: "Simmer", Duration: ptr("15 min"), ImageIDs: []uuid.UUID{img.ID}},
		},
	})
	require.NoError(t, err)

	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "basmati rice", recipe.Ingredients[0].Ingredient.NormalizedName)
	assert.Equal(t, 0, recipe.Ingredients[0].DisplayOrder)
	require.Len(t, recipe.Steps, 2)
	assert.Equal(t, 1, recipe.Steps[0].StepNumber)
	assert.Equal(t, 2, recipe.Steps[1].StepNumber)
	require.Len(t, recipe.Steps[1].Images, 1)
	require.NotNil(t, recipe.Steps[1].Images[0].File)
	assert.NotEmpty(t, recipe.Steps[1].Images[0].File.URL)
	assert.True(t, s.associated(t, img.ID))
}

func TestCreateRecipeRollsBackOnUnknownCategory(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)
	img := s.uploadImage(t, uc)

	_, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title:        "Ghost",
		Tags:         []string{"phantom"},
		CoverImageID: &img.ID,
		CategoryIDs:  []uuid.UUID{uuid.New()},
	})
	assertKind(t, err, models.KindValidation)

	var recipes, tags int64
	require.NoError(t, s.db.Model(&models.Recipe{}).Count(&recipes).Error)
	require.NoError(t, s.db.Model(&models.Tag{}).Count(&tags).Error)
	assert.Zero(t, recipes)
	assert.Zero(t, tags)
	assert.False(t, s.associated(t, img.ID))
}

func TestUpdateRecipeVersionConflict(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Soup"})
	require.NoError(t, err)

	updated, err := s.recipes.UpdateRecipe(ctx, uc, recipe.ID, RecipeInput{Title: "Tomato soup", Version: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Tomato soup", updated.Title)

	_, err = s.recipes.UpdateRecipe(ctx, uc, recipe.ID, RecipeInput{Title: "Stale", Version: ptr(1)})
	assertKind(t, err, models.KindConcurrencyConflict)

	again, err := s.recipes.UpdateRecipe(ctx, uc, recipe.ID, RecipeInput{Title: "No version"})
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version)
}

func TestRecipeOwnershipPolicy(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := s.actor(t, "alice", memberPerms...)
	bob := s.actor(t, "bob", memberPerms...)
	editor := s.actor(t, "editor", "recipe:read", "recipe:update", "recipe:delete")

	recipe, err := s.recipes.CreateRecipe(ctx, alice, RecipeInput{Title: "Alice's pie"})
	require.NoError(t, err)

	_, err = s.recipes.UpdateRecipe(ctx, bob, recipe.ID, RecipeInput{Title: "Bob's pie"})
	assertKind(t, err, models.KindPermissionDenied)
	err = s.recipes.DeleteRecipe(ctx, bob, recipe.ID)
	assertKind(t, err, models.KindPermissionDenied)

	_, err = s.recipes.UpdateRecipe(ctx, editor, recipe.ID, RecipeInput{Title: "Edited pie"})
	require.NoError(t, err)

	_, err = s.recipes.UpdateRecipe(ctx, alice, recipe.ID, RecipeInput{Title: "Alice's pie v2"})
	require.NoError(t, err)
	require.NoError(t, s.recipes.DeleteRecipe(ctx, alice, recipe.ID))

	_, err = s.recipes.GetRecipe(ctx, alice, recipe.ID, models.ViewActive)
	assertKind(t, err, models.KindNotFound)
	got, err := s.recipes.GetRecipe(ctx, alice, recipe.ID, models.ViewDeleted)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	n, err := s.recipes.RestoreRecipes(ctx, alice, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = s.recipes.DeleteRecipe(ctx, alice, uuid.New())
	assertKind(t, err, models.KindNotFound)
}

func TestUpdateRecipeReleasesDroppedImages(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)
	cover := s.uploadImage(t, uc)
	gallery := s.uploadImage(t, uc)

	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title:           "Salad",
		CoverImageID:    &cover.ID,
		GalleryImageIDs: []uuid.UUID{gallery.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, recipe.CoverImage)
	assert.NotEmpty(t, recipe.CoverImage.URL)
	require.Len(t, recipe.GalleryLinks, 1)
	assert.True(t, s.associated(t, cover.ID))
	assert.True(t, s.associated(t, gallery.ID))

	_, err = s.recipes.UpdateRecipe(ctx, uc, recipe.ID, RecipeInput{Title: "Salad", CoverImageID: &cover.ID})
	require.NoError(t, err)
	assert.True(t, s.associated(t, cover.ID))
	assert.False(t, s.associated(t, gallery.ID))
}

func TestPermanentDeleteKeepsSharedFiles(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)
	shared := s.uploadImage(t, uc)
	own := s.uploadImage(t, uc)

	first, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title:           "First",
		CoverImageID:    &shared.ID,
		GalleryImageIDs: []uuid.UUID{own.ID},
	})
	require.NoError(t, err)
	second, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title: "Second",
		Steps: []RecipeStepInput{{Instruction: "Plate", ImageIDs: []uuid.UUID{shared.ID}}},
	})
	require.NoError(t, err)

	_, err = s.recipes.PermanentDeleteRecipes(ctx, uc, []uuid.UUID{first.ID})
	assertKind(t, err, models.KindNotFound)

	require.NoError(t, s.recipes.DeleteRecipe(ctx, uc, first.ID))
	n, err := s.recipes.PermanentDeleteRecipes(ctx, uc, []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.True(t, s.associated(t, shared.ID))
	assert.False(t, s.associated(t, own.ID))

	var links int64
	require.NoError(t, s.db.Model(&models.RecipeGalleryLink{}).Where("recipe_id = ?", first.ID).Count(&links).Error)
	assert.Zero(t, links)

	require.NoError(t, s.recipes.DeleteRecipe(ctx, uc, second.ID))
	_, err = s.recipes.PermanentDeleteRecipes(ctx, uc, []uuid.UUID{second.ID})
	require.NoError(t, err)
	assert.False(t, s.associated(t, shared.ID))
}

func TestListRecipesFiltersByTaxonomy(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	dinner, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Dinner"})
	require.NoError(t, err)

	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Curry", Tags: []string{"spicy"}, CategoryIDs: []uuid.UUID{dinner.ID}})
	require.NoError(t, err)
	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Chili", Tags: []string{"spicy"}})
	require.NoError(t, err)
	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Porridge"})
	require.NoError(t, err)

	spicy, err := s.tagRepo.FindOne(ctx, repository.Where("name", "spicy"), models.ViewActive)
	require.NoError(t, err)

	page, err := s.recipes.ListRecipes(ctx, uc, RecipeListQuery{
		PageQuery: repository.PageQuery{Page: 1, PerPage: 10},
		TagIDs:    []uuid.UUID{spicy.ID},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = s.recipes.ListRecipes(ctx, uc, RecipeListQuery{
		PageQuery:   repository.PageQuery{Page: 1, PerPage: 10},
		TagIDs:      []uuid.UUID{spicy.ID},
		CategoryIDs: []uuid.UUID{dinner.ID},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "Curry", page.Items[0].Title)

	_, err = s.recipes.ListRecipes(ctx, s.actor(t, "nobody"), RecipeListQuery{PageQuery: repository.PageQuery{Page: 1, PerPage: 10}})
	assertKind(t, err, models.KindPermissionDenied)
}
