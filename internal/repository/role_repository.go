package repository

import (
	"context"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository struct {
	*Repository[models.Role]
	permissionLinks linkTable
	userLinks       linkTable
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{
		Repository:      NewRepository[models.Role](db),
		permissionLinks: linkTable{db: db, name: "role_permissions", ownerCol: "role_id", refCol: "permission_id"},
		userLinks:       linkTable{db: db, name: "user_roles", ownerCol: "role_id", refCol: "user_id"},
	}
}

// WithPermissions preloads the active permissions of each role.
func (r *RoleRepository) WithPermissions(db *gorm.DB) *gorm.DB {
	return db.Preload("Permissions", activeOnly)
}

// FindByCode looks up an active role by code.
func (r *RoleRepository) FindByCode(ctx context.Context, code string) (*models.Role, error) {
	return r.FindOne(ctx, Where("code", code), models.ViewActive)
}

// GetWithPermissions loads one role and its permissions.
func (r *RoleRepository) GetWithPermissions(ctx context.Context, id uuid.UUID, mode models.ViewMode) (*models.Role, error) {
	return r.GetByID(ctx, id, mode, r.WithPermissions)
}

func (r *RoleRepository) AddPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs ...uuid.UUID) error {
	return r.permissionLinks.Add(ctx, roleID, permissionIDs...)
}

func (r *RoleRepository) RemovePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs ...uuid.UUID) error {
	return r.permissionLinks.Remove(ctx, roleID, permissionIDs...)
}

func (r *RoleRepository) ReplacePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return r.permissionLinks.Replace(ctx, roleID, permissionIDs)
}

// ReassignUsers moves user memberships from sources to target.
func (r *RoleRepository) ReassignUsers(ctx context.Context, sources []uuid.UUID, target uuid.UUID) (int64, error) {
	users := linkTable{db: r.db, name: "user_roles", ownerCol: "user_id", refCol: "role_id"}
	return users.Reassign(ctx, sources, target)
}

// MergePermissions grants target every permission held by sources.
func (r *RoleRepository) MergePermissions(ctx context.Context, sources []uuid.UUID, target uuid.UUID) error {
	var ids []uuid.UUID
	if err := r.DB(ctx).Table("role_permissions").Where("role_id IN ?", uuidValues(sources)).Pluck("permission_id", &ids).Error; err != nil {
		return err
	}
	return r.permissionLinks.Add(ctx, target, ids...)
}

// ClearLinks drops permission and user links of the roles.
func (r *RoleRepository) ClearLinks(ctx context.Context, ids []uuid.UUID) error {
	if err := r.permissionLinks.DeleteByOwners(ctx, ids); err != nil {
		return err
	}
	return r.userLinks.DeleteByOwners(ctx, ids)
}

type PermissionRepository struct {
	*Repository[models.Permission]
	roleLinks linkTable
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{
		Repository: NewRepository[models.Permission](db),
		roleLinks:  linkTable{db: db, name: "role_permissions", ownerCol: "role_id", refCol: "permission_id"},
	}
}

// FindByCode looks up a permission by code in the given view.
func (r *PermissionRepository) FindByCode(ctx context.Context, code string, mode models.ViewMode) (*models.Permission, error) {
	return r.FindOne(ctx, Where("code", code), mode)
}

// ClearLinks removes the permissions from every role.
func (r *PermissionRepository) ClearLinks(ctx context.Context, ids []uuid.UUID) error {
	return r.roleLinks.DeleteByRefs(ctx, ids)
}
