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

func TestTagNamesAreUniqueIgnoringCase(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	_, err := s.tags.CreateTag(ctx, uc, TagInput{Name: "Breakfast"})
	require.NoError(t, err)

	_, err = s.tags.CreateTag(ctx, uc, TagInput{Name: "breakfast"})
	assertKind(t, err, models.KindAlreadyExists)

	page, err := s.tags.ListTags(ctx, uc, repository.PageQuery{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestTagWriteRequiresPermission(t *testing.T) {
	s := newStack(t)
	reader := s.actor(t, "reader", "tag:read")

	_, err := s.tags.CreateTag(context.Background(), reader, TagInput{Name: "soup"})
	assertKind(t, err, models.KindPermissionDenied)
}

func TestDeletingUsedTagIsRefused(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Pancakes", Tags: []string{"breakfast"}})
	require.NoError(t, err)
	require.Len(t, recipe.Tags, 1)
	tagID := recipe.Tags[0].ID

	err = s.tags.DeleteTag(ctx, uc, tagID)
	assertKind(t, err, models.KindBusinessRule)

	_, err = s.tags.GetTag(ctx, uc, tagID, models.ViewActive)
	require.NoError(t, err)

	// once the recipe is gone the tag may be deleted
	_, err = s.recipes.BatchDeleteRecipes(ctx, uc, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	require.NoError(t, s.tags.DeleteTag(ctx, uc, tagID))

	_, err = s.tags.GetTag(ctx, uc, tagID, models.ViewDeleted)
	require.NoError(t, err)
}

func TestMergeTagsReassignsRecipes(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	src, err := s.tags.CreateTag(ctx, uc, TagInput{Name: "quick"})
	require.NoError(t, err)
	dst, err := s.tags.CreateTag(ctx, uc, TagInput{Name: "fast"})
	require.NoError(t, err)

	for _, tags := range [][]string{
		{src.ID.String()},
		{src.ID.String(), dst.ID.String()},
		{dst.ID.String()},
	} {
		_, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "r", Tags: tags})
		require.NoError(t, err)
	}

	_, err = s.tags.MergeTags(ctx, uc, MergeInput{SourceIDs: []uuid.UUID{src.ID}, TargetID: dst.ID})
	require.NoError(t, err)

	counts, err := s.tagRepo.UsageCounts(ctx, []uuid.UUID{dst.ID, src.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[dst.ID])
	assert.EqualValues(t, 0, counts[src.ID])

	_, err = s.tags.GetTag(ctx, uc, src.ID, models.ViewActive)
	assertKind(t, err, models.KindNotFound)

	_, err = s.tags.MergeTags(ctx, uc, MergeInput{SourceIDs: []uuid.UUID{dst.ID}, TargetID: dst.ID})
	assertKind(t, err, models.KindBusinessRule)
}

func TestCategorySlugsAndParents(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	root, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Main Dishes"})
	require.NoError(t, err)
	assert.Equal(t, "main-dishes", root.Slug)

	_, err = s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Other", Slug: "Main Dishes"})
	assertKind(t, err, models.KindAlreadyExists)

	child, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Pasta", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = s.categories.UpdateCategory(ctx, uc, root.ID, CategoryInput{Name: root.Name, ParentID: &child.ID})
	assertKind(t, err, models.KindBusinessRule)

	_, err = s.categories.UpdateCategory(ctx, uc, root.ID, CategoryInput{Name: root.Name, ParentID: &root.ID})
	assertKind(t, err, models.KindBusinessRule)

	missing := uuid.New()
	_, err = s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Orphan", ParentID: &missing})
	assertKind(t, err, models.KindNotFound)

	tree, err := s.categories.Tree(ctx, uc)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "pasta", tree[0].Children[0].Slug)
}

func TestMergeCategoriesMovesChildrenAndLinks(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	a, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Desserts"})
	require.NoError(t, err)
	b, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Sweets"})
	require.NoError(t, err)
	child, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Cakes", ParentID: &a.ID})
	require.NoError(t, err)

	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Tart", CategoryIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)
	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Fudge", CategoryIDs: []uuid.UUID{a.ID, b.ID}})
	require.NoError(t, err)

	_, err = s.categories.MergeCategories(ctx, uc, MergeInput{SourceIDs: []uuid.UUID{a.ID}, TargetID: child.ID})
	assertKind(t, err, models.KindBusinessRule)

	_, err = s.categories.MergeCategories(ctx, uc, MergeInput{SourceIDs: []uuid.UUID{a.ID}, TargetID: b.ID})
	require.NoError(t, err)

	counts, err := s.categoryRepo.UsageCounts(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[b.ID])

	moved, err := s.categories.GetCategory(ctx, uc, child.ID, models.ViewActive)
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, b.ID, *moved.ParentID)
}

func TestRestoreCategoryWithTakenSlugFails(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	first, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Soups"})
	require.NoError(t, err)
	require.NoError(t, s.categories.DeleteCategory(ctx, uc, first.ID))

	_, err = s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Soups"})
	require.NoError(t, err)

	_, err = s.categories.RestoreCategories(ctx, uc, []uuid.UUID{first.ID})
	assertKind(t, err, models.KindAlreadyExists)
}

func TestIngredientFindOrCreateUsesNormalizedName(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	first, err := s.ingredients.FindOrCreateByName(ctx, uc, "Green  Onion")
	require.NoError(t, err)
	second, err := s.ingredients.FindOrCreateByName(ctx, uc, " green onion ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "green onion", first.NormalizedName)

	_, err = s.ingredients.CreateIngredient(ctx, uc, IngredientInput{Name: "GREEN ONION"})
	assertKind(t, err, models.KindAlreadyExists)
}

func TestPermanentDeleteNeedsRecycleBin(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	unit, err := s.units.CreateUnit(ctx, uc, UnitInput{Name: "cup"})
	require.NoError(t, err)

	_, err = s.units.PermanentDeleteUnits(ctx, uc, []uuid.UUID{unit.ID})
	assertKind(t, err, models.KindNotFound)

	require.NoError(t, s.units.DeleteUnit(ctx, uc, unit.ID))
	n, err := s.units.PermanentDeleteUnits(ctx, uc, []uuid.UUID{unit.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.units.GetUnit(ctx, uc, unit.ID, models.ViewAll)
	assertKind(t, err, models.KindNotFound)
}

func TestDeletingUsedIngredientIsRefused(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	flour, err := s.ingredients.CreateIngredient(ctx, uc, IngredientInput{Name: "Flour"})
	require.NoError(t, err)
	_, err = s.recipes.CreateRecipe(ctx, uc, RecipeInput{
		Title:       "Bread",
		Ingredients: []RecipeIngredientInput{{IngredientID: &flour.ID}},
	})
	require.NoError(t, err)

	err = s.ingredients.DeleteIngredient(ctx, uc, flour.ID)
	assertKind(t, err, models.KindBusinessRule)

	_, err = s.ingredients.BatchDeleteIngredients(ctx, uc, []uuid.UUID{flour.ID})
	assertKind(t, err, models.KindBusinessRule)

	kept, err := s.ingredients.GetIngredient(ctx, uc, flour.ID, models.ViewActive)
	require.NoError(t, err)
	assert.Equal(t, "Flour", kept.Name)
}

func TestDeletingUsedCategoryIsRefused(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	soups, err := s.categories.CreateCategory(ctx, uc, CategoryInput{Name: "Soups"})
	require.NoError(t, err)
	recipe, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Minestrone", CategoryIDs: []uuid.UUID{soups.ID}})
	require.NoError(t, err)

	err = s.categories.DeleteCategory(ctx, uc, soups.ID)
	assertKind(t, err, models.KindBusinessRule)

	_, err = s.categories.GetCategory(ctx, uc, soups.ID, models.ViewActive)
	require.NoError(t, err)

	_, err = s.recipes.BatchDeleteRecipes(ctx, uc, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	require.NoError(t, s.categories.DeleteCategory(ctx, uc, soups.ID))
}

func TestTagDeleteHonoursOwnScope(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := s.actor(t, "alice", "tag:create", "tag:read", "tag:delete:own", "tag:update:own")
	bob := s.actor(t, "bob", "tag:create", "tag:read")

	mine, err := s.tags.CreateTag(ctx, alice, TagInput{Name: "mine"})
	require.NoError(t, err)
	theirs, err := s.tags.CreateTag(ctx, bob, TagInput{Name: "theirs"})
	require.NoError(t, err)

	err = s.tags.DeleteTag(ctx, alice, theirs.ID)
	assertKind(t, err, models.KindPermissionDenied)
	_, err = s.tags.BatchDeleteTags(ctx, alice, []uuid.UUID{mine.ID, theirs.ID})
	assertKind(t, err, models.KindPermissionDenied)

	require.NoError(t, s.tags.DeleteTag(ctx, alice, mine.ID))

	n, err := s.tags.RestoreTags(ctx, alice, []uuid.UUID{mine.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = s.tags.DeleteTag(ctx, bob, theirs.ID)
	assertKind(t, err, models.KindPermissionDenied)
}
