package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// PermissionController handles HTTP requests related to permissions
type PermissionController struct {
	service   services.PermissionService
	catalogue *database.Catalogue
}

// NewPermissionController wires the service and the catalogue applied by Sync.
func NewPermissionController(service services.PermissionService, catalogue *database.Catalogue) *PermissionController {
	return &PermissionController{service: service, catalogue: catalogue}
}

// ListPermissions godoc
// @Summary List permissions
// @Tags permissions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Success 200 {object} models.Response{data=repository.Page[models.Permission]}
// @Security BearerAuth
// @Router /api/v1/permission [get]
func (pc *PermissionController) ListPermissions(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := pc.service.ListPermissions(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetPermission godoc
// @Summary Get a permission
// @Tags permissions
// @Produce json
// @Param id path string true "Permission ID"
// @Success 200 {object} models.Response{data=models.Permission}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/permission/{id} [get]
func (pc *PermissionController) GetPermission(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	p, err := pc.service.GetPermission(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// CreatePermission godoc
// @Summary Create a permission
// @Tags permissions
// @Accept json
// @Produce json
// @Param permission body services.PermissionInput true "Permission"
// @Success 201 {object} models.Response{data=models.Permission}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/permission [post]
func (pc *PermissionController) CreatePermission(c *gin.Context) {
	var in services.PermissionInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	p, err := pc.service.CreatePermission(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, p)
}

// UpdatePermission godoc
// @Summary Update a permission
// @Tags permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission ID"
// @Param permission body services.PermissionInput true "Permission"
// @Success 200 {object} models.Response{data=models.Permission}
// @Security BearerAuth
// @Router /api/v1/permission/{id} [put]
func (pc *PermissionController) UpdatePermission(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.PermissionInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	p, err := pc.service.UpdatePermission(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// DeletePermission godoc
// @Summary Delete a permission
// @Description Role grants of the permission are removed with it.
// @Tags permissions
// @Produce json
// @Param id path string true "Permission ID"
// @Success 200 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/permission/{id} [delete]
func (pc *PermissionController) DeletePermission(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := pc.service.DeletePermission(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// SyncPermissions godoc
// @Summary Sync the permission catalogue
// @Description Upserts the built-in permissions and grants catalogue roles their permissions. Manual grants are kept.
// @Tags permissions
// @Produce json
// @Success 200 {object} models.Response{data=services.SyncReport}
// @Security BearerAuth
// @Router /api/v1/permission/sync [post]
func (pc *PermissionController) SyncPermissions(c *gin.Context) {
	report, err := pc.service.SyncCatalogue(c.Request.Context(), user(c), pc.catalogue)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}
