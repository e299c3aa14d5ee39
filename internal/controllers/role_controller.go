package controllers

import (
	"context"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RoleController handles HTTP requests related to roles
type RoleController struct {
	service services.RoleService
}

func NewRoleController(service services.RoleService) *RoleController {
	return &RoleController{service: service}
}

// ListRoles godoc
// @Summary List roles
// @Description Paginated roles. Any other query parameter is a field__op filter.
// @Tags roles
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.Role]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role [get]
func (rc *RoleController) ListRoles(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := rc.service.ListRoles(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetRole godoc
// @Summary Get a role with its permissions
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Role}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role/{id} [get]
func (rc *RoleController) GetRole(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	role, err := rc.service.GetRole(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

// CreateRole godoc
// @Summary Create a role
// @Description Role codes are lowercased and unique among active roles.
// @Tags roles
// @Accept json
// @Produce json
// @Param role body services.RoleInput true "Role"
// @Success 201 {object} models.Response{data=models.Role}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role [post]
func (rc *RoleController) CreateRole(c *gin.Context) {
	var in services.RoleInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	role, err := rc.service.CreateRole(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, role)
}

// UpdateRole godoc
// @Summary Update a role
// @Tags roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param role body services.RoleInput true "Role"
// @Success 200 {object} models.Response{data=models.Role}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role/{id} [put]
func (rc *RoleController) UpdateRole(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.RoleInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	role, err := rc.service.UpdateRole(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

// DeleteRole godoc
// @Summary Soft-delete a role
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role/{id} [delete]
func (rc *RoleController) DeleteRole(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := rc.service.DeleteRole(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteRoles godoc
// @Summary Soft-delete roles
// @Tags roles
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Role IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/role/batch [delete]
func (rc *RoleController) BatchDeleteRoles(c *gin.Context) {
	batch(rc.service.BatchDeleteRoles)(c)
}

// RestoreRoles godoc
// @Summary Restore soft-deleted roles
// @Tags roles
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Role IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/role/restore [post]
func (rc *RoleController) RestoreRoles(c *gin.Context) {
	batch(rc.service.RestoreRoles)(c)
}

// PermanentDeleteRoles godoc
// @Summary Permanently delete roles from the recycle bin
// @Tags roles
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Role IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/role/permanent-delete [delete]
func (rc *RoleController) PermanentDeleteRoles(c *gin.Context) {
	batch(rc.service.PermanentDeleteRoles)(c)
}

// MergeRoles godoc
// @Summary Merge roles into a target
// @Description Users and permissions of the sources move to the target and the sources are soft-deleted.
// @Tags roles
// @Accept json
// @Produce json
// @Param merge body services.MergeInput true "Sources and target"
// @Success 200 {object} models.Response{data=models.Role}
// @Security BearerAuth
// @Router /api/v1/role/merge [post]
func (rc *RoleController) MergeRoles(c *gin.Context) {
	var in services.MergeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	role, err := rc.service.MergeRoles(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

func (rc *RoleController) changePermission(c *gin.Context, fn func(ctx context.Context, uc *models.UserContext, roleID, permissionID uuid.UUID) (*models.Role, error)) {
	roleID, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	permissionID, err := pathID(c, "permission_id")
	if err != nil {
		fail(c, err)
		return
	}
	role, err := fn(c.Request.Context(), user(c), roleID, permissionID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

// AssignPermission godoc
// @Summary Grant a permission to a role
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Param permission_id path string true "Permission ID"
// @Success 200 {object} models.Response{data=models.Role}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role/{id}/permissions/{permission_id} [post]
func (rc *RoleController) AssignPermission(c *gin.Context) {
	rc.changePermission(c, rc.service.AssignPermission)
}

// RevokePermission godoc
// @Summary Revoke a permission from a role
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Param permission_id path string true "Permission ID"
// @Success 200 {object} models.Response{data=models.Role}
// @Security BearerAuth
// @Router /api/v1/role/{id}/permissions/{permission_id} [delete]
func (rc *RoleController) RevokePermission(c *gin.Context) {
	rc.changePermission(c, rc.service.RevokePermission)
}

// SetPermissions godoc
// @Summary Replace the permissions of a role
// @Tags roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param permissions body services.RolePermissionsInput true "Permission IDs"
// @Success 200 {object} models.Response{data=models.Role}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/role/{id}/permissions [put]
func (rc *RoleController) SetPermissions(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.RolePermissionsInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	role, err := rc.service.SetPermissions(c.Request.Context(), user(c), id, in.PermissionIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}
