package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// IngredientController handles HTTP requests related to ingredients
type IngredientController struct {
	service services.IngredientService
}

func NewIngredientController(service services.IngredientService) *IngredientController {
	return &IngredientController{service: service}
}

// ListIngredients godoc
// @Summary List ingredients
// @Description Paginated ingredients. Any other query parameter is a field__op filter.
// @Tags ingredients
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.Ingredient]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/ingredient [get]
func (ic *IngredientController) ListIngredients(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := ic.service.ListIngredients(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetIngredient godoc
// @Summary Get a ingredient
// @Tags ingredients
// @Produce json
// @Param id path string true "Ingredient ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Ingredient}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/ingredient/{id} [get]
func (ic *IngredientController) GetIngredient(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	ingredient, err := ic.service.GetIngredient(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, ingredient)
}

// CreateIngredient godoc
// @Summary Create a ingredient
// @Description Names are compared after normalization (trimmed, lowercased, inner spaces collapsed).
// @Tags ingredients
// @Accept json
// @Produce json
// @Param ingredient body services.IngredientInput true "Ingredient"
// @Success 201 {object} models.Response{data=models.Ingredient}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/ingredient [post]
func (ic *IngredientController) CreateIngredient(c *gin.Context) {
	var in services.IngredientInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	ingredient, err := ic.service.CreateIngredient(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, ingredient)
}

// UpdateIngredient godoc
// @Summary Update a ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param id path string true "Ingredient ID"
// @Param ingredient body services.IngredientInput true "Ingredient"
// @Success 200 {object} models.Response{data=models.Ingredient}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/ingredient/{id} [put]
func (ic *IngredientController) UpdateIngredient(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.IngredientInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	ingredient, err := ic.service.UpdateIngredient(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, ingredient)
}

// DeleteIngredient godoc
// @Summary Soft-delete a ingredient
// @Tags ingredients
// @Produce json
// @Param id path string true "Ingredient ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/ingredient/{id} [delete]
func (ic *IngredientController) DeleteIngredient(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := ic.service.DeleteIngredient(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteIngredients godoc
// @Summary Soft-delete ingredients
// @Tags ingredients
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Ingredient IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/ingredient/batch [delete]
func (ic *IngredientController) BatchDeleteIngredients(c *gin.Context) {
	batch(ic.service.BatchDeleteIngredients)(c)
}

// RestoreIngredients godoc
// @Summary Restore soft-deleted ingredients
// @Tags ingredients
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Ingredient IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/ingredient/restore [post]
func (ic *IngredientController) RestoreIngredients(c *gin.Context) {
	batch(ic.service.RestoreIngredients)(c)
}

// PermanentDeleteIngredients godoc
// @Summary Permanently delete ingredients no recipe references
// @Tags ingredients
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Ingredient IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/ingredient/permanent-delete [delete]
func (ic *IngredientController) PermanentDeleteIngredients(c *gin.Context) {
	batch(ic.service.PermanentDeleteIngredients)(c)
}

// MergeIngredients godoc
// @Summary Merge ingredients into a target
// @Description Recipe ingredient lines of the sources point at the target afterwards.
// @Tags ingredients
// @Accept json
// @Produce json
// @Param merge body services.MergeInput true "Sources and target"
// @Success 200 {object} models.Response{data=models.Ingredient}
// @Security BearerAuth
// @Router /api/v1/ingredient/merge [post]
func (ic *IngredientController) MergeIngredients(c *gin.Context) {
	var in services.MergeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	ingredient, err := ic.service.MergeIngredients(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, ingredient)
}
