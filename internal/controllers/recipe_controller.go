package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// RecipeController handles HTTP requests related to recipes
type RecipeController struct {
	service services.RecipeService
}

func NewRecipeController(service services.RecipeService) *RecipeController {
	return &RecipeController{service: service}
}

// ListRecipes godoc
// @Summary List recipes
// @Description Paginated recipes. tag_ids, category_ids and ingredient_ids narrow the page to recipes linked to any of the given ids. Other query parameters are field__op filters.
// @Tags recipes
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Param tag_ids query string false "Comma separated tag ids"
// @Param category_ids query string false "Comma separated category ids"
// @Param ingredient_ids query string false "Comma separated ingredient ids"
// @Success 200 {object} models.Response{data=repository.Page[models.Recipe]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/recipe [get]
func (rc *RecipeController) ListRecipes(c *gin.Context) {
	q, err := pageQuery(c, "tag_ids", "category_ids", "ingredient_ids")
	if err != nil {
		fail(c, err)
		return
	}
	lq := services.RecipeListQuery{PageQuery: q}
	if lq.TagIDs, err = queryIDs(c, "tag_ids"); err != nil {
		fail(c, err)
		return
	}
	if lq.CategoryIDs, err = queryIDs(c, "category_ids"); err != nil {
		fail(c, err)
		return
	}
	if lq.IngredientIDs, err = queryIDs(c, "ingredient_ids"); err != nil {
		fail(c, err)
		return
	}

	page, err := rc.service.ListRecipes(c.Request.Context(), user(c), lq)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetRecipe godoc
// @Summary Get a recipe
// @Description Returns the recipe with steps, ingredient lines, tags, categories and image urls.
// @Tags recipes
// @Produce json
// @Param id path string true "Recipe ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Recipe}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/recipe/{id} [get]
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	recipe, err := rc.service.GetRecipe(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, recipe)
}

// CreateRecipe godoc
// @Summary Create a recipe
// @Description Tags may be ids or names; unknown names are created. Ingredient lines may name an ingredient instead of referencing one. Everything is written in one transaction.
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 201 {object} models.Response{data=models.Recipe}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/recipe [post]
func (rc *RecipeController) CreateRecipe(c *gin.Context) {
	var in services.RecipeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	recipe, err := rc.service.CreateRecipe(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, recipe)
}

// UpdateRecipe godoc
// @Summary Replace a recipe
// @Description Relations are replaced wholesale. When version is sent it must match the stored version.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path string true "Recipe ID"
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 200 {object} models.Response{data=models.Recipe}
// @Failure 403 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/recipe/{id} [put]
func (rc *RecipeController) UpdateRecipe(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.RecipeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	recipe, err := rc.service.UpdateRecipe(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, recipe)
}

// DeleteRecipe godoc
// @Summary Soft-delete a recipe
// @Tags recipes
// @Produce json
// @Param id path string true "Recipe ID"
// @Success 200 {object} models.Response
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/recipe/{id} [delete]
func (rc *RecipeController) DeleteRecipe(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := rc.service.DeleteRecipe(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteRecipes godoc
// @Summary Soft-delete recipes
// @Tags recipes
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Recipe IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/recipe/batch [delete]
func (rc *RecipeController) BatchDeleteRecipes(c *gin.Context) {
	batch(rc.service.BatchDeleteRecipes)(c)
}

// RestoreRecipes godoc
// @Summary Restore soft-deleted recipes
// @Tags recipes
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Recipe IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/recipe/restore [post]
func (rc *RecipeController) RestoreRecipes(c *gin.Context) {
	batch(rc.service.RestoreRecipes)(c)
}

// PermanentDeleteRecipes godoc
// @Summary Permanently delete recipes
// @Description Only recipes already in the recycle bin. Images no other recipe uses become unassociated and are purged later.
// @Tags recipes
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Recipe IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/recipe/permanent-delete [delete]
func (rc *RecipeController) PermanentDeleteRecipes(c *gin.Context) {
	batch(rc.service.PermanentDeleteRecipes)(c)
}
