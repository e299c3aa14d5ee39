package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// CategoryController handles HTTP requests related to categories
type CategoryController struct {
	service services.CategoryService
}

func NewCategoryController(service services.CategoryService) *CategoryController {
	return &CategoryController{service: service}
}

// ListCategories godoc
// @Summary List categories
// @Description Paginated categories. Any other query parameter is a field__op filter.
// @Tags categories
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.Category]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/category [get]
func (cc *CategoryController) ListCategories(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := cc.service.ListCategories(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetCategory godoc
// @Summary Get a category
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Category}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/category/{id} [get]
func (cc *CategoryController) GetCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	category, err := cc.service.GetCategory(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, category)
}

// CreateCategory godoc
// @Summary Create a category
// @Description The slug is derived from the name when omitted. A parent must exist and must not create a cycle.
// @Tags categories
// @Accept json
// @Produce json
// @Param category body services.CategoryInput true "Category"
// @Success 201 {object} models.Response{data=models.Category}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/category [post]
func (cc *CategoryController) CreateCategory(c *gin.Context) {
	var in services.CategoryInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	category, err := cc.service.CreateCategory(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, category)
}

// UpdateCategory godoc
// @Summary Update a category
// @Tags categories
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param category body services.CategoryInput true "Category"
// @Success 200 {object} models.Response{data=models.Category}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/category/{id} [put]
func (cc *CategoryController) UpdateCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.CategoryInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	category, err := cc.service.UpdateCategory(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, category)
}

// DeleteCategory godoc
// @Summary Soft-delete a category
// @Tags categories
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/category/{id} [delete]
func (cc *CategoryController) DeleteCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := cc.service.DeleteCategory(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteCategories godoc
// @Summary Soft-delete categories
// @Tags categories
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Category IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/category/batch [delete]
func (cc *CategoryController) BatchDeleteCategories(c *gin.Context) {
	batch(cc.service.BatchDeleteCategories)(c)
}

// RestoreCategories godoc
// @Summary Restore soft-deleted categories
// @Tags categories
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Category IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/category/restore [post]
func (cc *CategoryController) RestoreCategories(c *gin.Context) {
	batch(cc.service.RestoreCategories)(c)
}

// PermanentDeleteCategories godoc
// @Summary Permanently delete categories from the recycle bin
// @Tags categories
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Category IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/category/permanent-delete [delete]
func (cc *CategoryController) PermanentDeleteCategories(c *gin.Context) {
	batch(cc.service.PermanentDeleteCategories)(c)
}

// MergeCategories godoc
// @Summary Merge categories into a target
// @Description Recipe links and child categories of the sources move to the target.
// @Tags categories
// @Accept json
// @Produce json
// @Param merge body services.MergeInput true "Sources and target"
// @Success 200 {object} models.Response{data=models.Category}
// @Security BearerAuth
// @Router /api/v1/category/merge [post]
func (cc *CategoryController) MergeCategories(c *gin.Context) {
	var in services.MergeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	category, err := cc.service.MergeCategories(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, category)
}

// CategoryTree godoc
// @Summary Category tree
// @Description Active categories nested under their parents, roots first.
// @Tags categories
// @Produce json
// @Success 200 {object} models.Response{data=[]models.Category}
// @Security BearerAuth
// @Router /api/v1/category/tree [get]
func (cc *CategoryController) CategoryTree(c *gin.Context) {
	tree, err := cc.service.Tree(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tree)
}
