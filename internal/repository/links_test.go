package repository

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecipe(t *testing.T, repo *RecipeRepository, title string) *models.Recipe {
	recipe := &models.Recipe{Title: title}
	require.NoError(t, repo.Create(context.Background(), recipe))
	return recipe
}

func TestTagReassignCountsSharedRecipesOnce(t *testing.T) {
	db := setupTestDB(t)
	tags := NewTagRepository(db)
	recipes := NewRecipeRepository(db)
	ctx := context.Background()

	tt := seedTags(t, tags, "source", "target")
	source, target := tt[0], tt[1]

	r1 := seedRecipe(t, recipes, "only source")
	r2 := seedRecipe(t, recipes, "both")
	r3 := seedRecipe(t, recipes, "only target")
	require.NoError(t, recipes.ReplaceTags(ctx, r1.ID, []uuid.UUID{source.ID}))
	require.NoError(t, recipes.ReplaceTags(ctx, r2.ID, []uuid.UUID{source.ID, target.ID}))
	require.NoError(t, recipes.ReplaceTags(ctx, r3.ID, []uuid.UUID{target.ID}))

	_, err := tags.ReassignRecipes(ctx, []uuid.UUID{source.ID}, target.ID)
	require.NoError(t, err)

	counts, err := tags.UsageCounts(ctx, []uuid.UUID{source.ID, target.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[source.ID])
	assert.Equal(t, int64(3), counts[target.ID])

	var links int64
	require.NoError(t, db.Table("recipe_tags").Where("recipe_id = ?", r2.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestUsageCountsIgnoreDeletedRecipes(t *testing.T) {
	db := setupTestDB(t)
	tags := NewTagRepository(db)
	recipes := NewRecipeRepository(db)
	ctx := context.Background()

	tag := seedTags(t, tags, "seasonal")[0]
	recipe := seedRecipe(t, recipes, "soup")
	require.NoError(t, recipes.ReplaceTags(ctx, recipe.ID, []uuid.UUID{tag.ID}))

	counts, err := tags.UsageCounts(ctx, []uuid.UUID{tag.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[tag.ID])

	_, err = recipes.SoftDelete(ctx, recipe.ID, nil)
	require.NoError(t, err)

	counts, err = tags.UsageCounts(ctx, []uuid.UUID{tag.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[tag.ID])
}

func TestTagFindByNameIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	tags := NewTagRepository(db)
	seedTags(t, tags, "Breakfast")

	got, err := tags.FindByName(context.Background(), "  breakFAST ")
	require.NoError(t, err)
	assert.Equal(t, "Breakfast", got.Name)

	_, err = tags.FindByName(context.Background(), "lunch")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryTreeAndDescendants(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	root := &models.Category{Name: "Meals", Slug: "meals"}
	require.NoError(t, repo.Create(ctx, root))
	child := &models.Category{Name: "Dinner", Slug: "dinner", ParentID: &root.ID}
	require.NoError(t, repo.Create(ctx, child))
	grandchild := &models.Category{Name: "Pasta", Slug: "pasta", ParentID: &child.ID}
	require.NoError(t, repo.Create(ctx, grandchild))
	other := &models.Category{Name: "Drinks", Slug: "drinks"}
	require.NoError(t, repo.Create(ctx, other))

	desc, err := repo.DescendantIDs(ctx, root.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{child.ID, grandchild.ID}, desc)

	tree, err := repo.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Drinks", tree[0].Name)
	assert.Equal(t, "Meals", tree[1].Name)
	require.Len(t, tree[1].Children, 1)
	require.Len(t, tree[1].Children[0].Children, 1)
	assert.Equal(t, "Pasta", tree[1].Children[0].Children[0].Name)
}

func TestRecipeReplaceChildrenAndFileIDs(t *testing.T) {
	db := setupTestDB(t)
	recipes := NewRecipeRepository(db)
	ingredients := NewIngredientRepository(db)
	files := NewFileRecordRepository(db)
	ctx := context.Background()

	var fileIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := &models.FileRecord{
			ObjectName:       uuid.NewString(),
			OriginalFilename: "photo.jpg",
			FileSize:         10,
			ContentType:      "image/jpeg",
			ProfileName:      "recipe-images",
			UploaderID:       uuid.New(),
		}
		require.NoError(t, files.Create(ctx, rec))
		fileIDs = append(fileIDs, rec.ID)
	}

	flour := &models.Ingredient{Name: "Flour", NormalizedName: "flour"}
	require.NoError(t, ingredients.Create(ctx, flour))

	recipe := &models.Recipe{Title: "Bread", CoverImageID: &fileIDs[0]}
	require.NoError(t, recipes.Create(ctx, recipe))

	require.NoError(t, recipes.ReplaceGallery(ctx, recipe.ID, []uuid.UUID{fileIDs[1], fileIDs[1]}))
	require.NoError(t, recipes.ReplaceSteps(ctx, recipe.ID, []models.RecipeStep{
		{Instruction: "Mix", Images: []models.RecipeStepImage{{FileID: fileIDs[2]}}},
		{Instruction: "Bake"},
	}))
	qty := 500.0
	require.NoError(t, recipes.ReplaceIngredients(ctx, recipe.ID, []models.RecipeIngredient{
		{IngredientID: flour.ID, Quantity: &qty},
	}))

	got, err := recipes.GetDetailed(ctx, recipe.ID, models.ViewActive)
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, 1, got.Steps[0].StepNumber)
	assert.Equal(t, "Bake", got.Steps[1].Instruction)
	require.Len(t, got.Steps[0].Images, 1)
	require.Len(t, got.GalleryLinks, 1)
	require.Len(t, got.Ingredients, 1)
	require.NotNil(t, got.Ingredients[0].Ingredient)
	assert.Equal(t, "Flour", got.Ingredients[0].Ingredient.Name)
	require.NotNil(t, got.CoverImage)

	ids, err := recipes.FileIDsOf(ctx, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, fileIDs, ids)

	used, err := recipes.FilesStillReferenced(ctx, fileIDs, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	assert.Empty(t, used)

	require.NoError(t, recipes.ClearLinks(ctx, []uuid.UUID{recipe.ID}))
	ids, err = recipes.FileIDsOf(ctx, []uuid.UUID{recipe.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{fileIDs[0]}, ids)
}

func TestRecipeUpdateWithVersion(t *testing.T) {
	db := setupTestDB(t)
	recipes := NewRecipeRepository(db)
	ctx := context.Background()
	recipe := seedRecipe(t, recipes, "Soup")

	n, err := recipes.UpdateWithVersion(ctx, recipe.ID, 1, map[string]any{"title": "Tomato soup"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = recipes.UpdateWithVersion(ctx, recipe.ID, 1, map[string]any{"title": "Stale"})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := recipes.GetByID(ctx, recipe.ID, models.ViewActive)
	require.NoError(t, err)
	assert.Equal(t, "Tomato soup", got.Title)
	assert.Equal(t, 2, got.Version)
}
