package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// UnitController handles HTTP requests related to units
type UnitController struct {
	service services.UnitService
}

func NewUnitController(service services.UnitService) *UnitController {
	return &UnitController{service: service}
}

// ListUnits godoc
// @Summary List units
// @Description Paginated units. Any other query parameter is a field__op filter.
// @Tags units
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.Unit]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/unit [get]
func (uc *UnitController) ListUnits(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := uc.service.ListUnits(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetUnit godoc
// @Summary Get a unit
// @Tags units
// @Produce json
// @Param id path string true "Unit ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Unit}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/unit/{id} [get]
func (uc *UnitController) GetUnit(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	unit, err := uc.service.GetUnit(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, unit)
}

// CreateUnit godoc
// @Summary Create a unit
// @Description Unit names are unique among active units.
// @Tags units
// @Accept json
// @Produce json
// @Param unit body services.UnitInput true "Unit"
// @Success 201 {object} models.Response{data=models.Unit}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/unit [post]
func (uc *UnitController) CreateUnit(c *gin.Context) {
	var in services.UnitInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	unit, err := uc.service.CreateUnit(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, unit)
}

// UpdateUnit godoc
// @Summary Update a unit
// @Tags units
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param unit body services.UnitInput true "Unit"
// @Success 200 {object} models.Response{data=models.Unit}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/unit/{id} [put]
func (uc *UnitController) UpdateUnit(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.UnitInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	unit, err := uc.service.UpdateUnit(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, unit)
}

// DeleteUnit godoc
// @Summary Soft-delete a unit
// @Tags units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/unit/{id} [delete]
func (uc *UnitController) DeleteUnit(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := uc.service.DeleteUnit(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteUnits godoc
// @Summary Soft-delete units
// @Tags units
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Unit IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/unit/batch [delete]
func (uc *UnitController) BatchDeleteUnits(c *gin.Context) {
	batch(uc.service.BatchDeleteUnits)(c)
}

// RestoreUnits godoc
// @Summary Restore soft-deleted units
// @Tags units
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Unit IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/unit/restore [post]
func (uc *UnitController) RestoreUnits(c *gin.Context) {
	batch(uc.service.RestoreUnits)(c)
}

// PermanentDeleteUnits godoc
// @Summary Permanently delete units from the recycle bin
// @Tags units
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Unit IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/unit/permanent-delete [delete]
func (uc *UnitController) PermanentDeleteUnits(c *gin.Context) {
	batch(uc.service.PermanentDeleteUnits)(c)
}

// MergeUnits godoc
// @Summary Merge units into a target
// @Description Recipe ingredient lines using the sources are moved to the target and the sources are soft-deleted.
// @Tags units
// @Accept json
// @Produce json
// @Param merge body services.MergeInput true "Sources and target"
// @Success 200 {object} models.Response{data=models.Unit}
// @Security BearerAuth
// @Router /api/v1/unit/merge [post]
func (uc *UnitController) MergeUnits(c *gin.Context) {
	var in services.MergeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	unit, err := uc.service.MergeUnits(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, unit)
}
