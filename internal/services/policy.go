package services

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
)

// Resources guarded by permission codes of the form resource:action[:scope].
const (
	ResourceRecipe     = "recipe"
	ResourceTag        = "tag"
	ResourceUnit       = "unit"
	ResourceIngredient = "ingredient"
	ResourceCategory   = "category"
	ResourceRole       = "role"
	ResourcePermission = "permission"
	ResourceUser       = "user"
	ResourceFile       = "file"
)

// Policy decides what a user may do with one resource type. owner is the
// created_by of the row, nil when the action is not about a single row.
type Policy interface {
	CanRead(uc *models.UserContext) bool
	CanCreate(uc *models.UserContext) bool
	CanUpdate(uc *models.UserContext, owner *uuid.UUID) bool
	CanDelete(uc *models.UserContext, owner *uuid.UUID) bool
}

type permissionPolicy struct {
	resource string
}

// PolicyFor returns the permission-code policy of resource.
func PolicyFor(resource string) Policy {
	return permissionPolicy{resource: resource}
}

func (p permissionPolicy) CanRead(uc *models.UserContext) bool {
	return p.allows(uc, "read", nil)
}

func (p permissionPolicy) CanCreate(uc *models.UserContext) bool {
	return p.allows(uc, "create", nil)
}

func (p permissionPolicy) CanUpdate(uc *models.UserContext, owner *uuid.UUID) bool {
	return p.allows(uc, "update", owner)
}

func (p permissionPolicy) CanDelete(uc *models.UserContext, owner *uuid.UUID) bool {
	return p.allows(uc, "delete", owner)
}

// allows grants a superuser everything. Otherwise resource:action and
// resource:action:any grant on every row and resource:action:own only on rows
// the user created.
func (p permissionPolicy) allows(uc *models.UserContext, action string, owner *uuid.UUID) bool {
	if uc == nil || uc.User == nil {
		return false
	}
	if uc.IsSuperuser() {
		return true
	}
	code := p.resource + ":" + action
	if uc.Has(code) || uc.Has(code+":any") {
		return true
	}
	return owner != nil && *owner == uc.UserID() && uc.Has(code+":own")
}

func authorize(allowed bool, action, resource string) error {
	if allowed {
		return nil
	}
	return models.NewPermissionDeniedError("you are not allowed to %s this %s", action, resource)
}

// SystemContext is the principal of command-line maintenance tasks.
func SystemContext() *models.UserContext {
	return &models.UserContext{
		User:        &models.User{Username: "system", IsSuperuser: true, IsActive: true},
		Permissions: map[string]struct{}{},
	}
}
