package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permissionCodes(role *models.Role) []string {
	codes := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

func TestSyncCatalogueIsIdempotent(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cat, err := database.DefaultCatalogue()
	require.NoError(t, err)

	first, err := s.permissions.SyncCatalogue(ctx, SystemContext(), cat)
	require.NoError(t, err)
	assert.Equal(t, len(cat.Permissions), first.PermissionsCreated)
	assert.Equal(t, len(cat.Roles), first.RolesCreated)

	second, err := s.permissions.SyncCatalogue(ctx, SystemContext(), cat)
	require.NoError(t, err)
	assert.Zero(t, second.PermissionsCreated)
	assert.Zero(t, second.RolesCreated)
	assert.Equal(t, len(cat.Permissions), second.PermissionsUpdated)

	var perms, links int64
	require.NoError(t, s.db.Model(&models.Permission{}).Count(&perms).Error)
	require.NoError(t, s.db.Model(&models.RolePermission{}).Count(&links).Error)
	assert.EqualValues(t, len(cat.Permissions), perms)

	_, err = s.permissions.SyncCatalogue(ctx, SystemContext(), cat)
	require.NoError(t, err)
	var again int64
	require.NoError(t, s.db.Model(&models.RolePermission{}).Count(&again).Error)
	assert.Equal(t, links, again)

	_, err = s.permissions.SyncCatalogue(ctx, s.actor(t, "pleb", "permission:read"), cat)
	assertKind(t, err, models.KindPermissionDenied)
}

func TestSyncCatalogueKeepsManualGrants(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	admin := s.admin(t)
	syncCatalogue(t, s)

	role, err := s.roleRepo.FindByCode(ctx, DefaultRoleCode)
	require.NoError(t, err)
	extra, err := s.permissions.CreatePermission(ctx, admin, PermissionInput{Code: "recipe:publish", Name: "Publish recipes"})
	require.NoError(t, err)
	_, err = s.roles.AssignPermission(ctx, admin, role.ID, extra.ID)
	require.NoError(t, err)

	syncCatalogue(t, s)
	got, err := s.roles.GetRole(ctx, admin, role.ID, models.ViewActive)
	require.NoError(t, err)
	assert.Contains(t, permissionCodes(got), "recipe:publish")
	assert.Contains(t, permissionCodes(got), "recipe:read")
}

func TestRoleCodesAreUnique(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	admin := s.admin(t)

	role, err := s.roles.CreateRole(ctx, admin, RoleInput{Code: "Moderator", Name: "Moderator"})
	require.NoError(t, err)
	assert.Equal(t, "moderator", role.Code)

	_, err = s.roles.CreateRole(ctx, admin, RoleInput{Code: "moderator", Name: "Again"})
	assertKind(t, err, models.KindAlreadyExists)

	other, err := s.roles.CreateRole(ctx, admin, RoleInput{Code: "reviewer", Name: "Reviewer"})
	require.NoError(t, err)
	_, err = s.roles.UpdateRole(ctx, admin, other.ID, RoleInput{Code: "MODERATOR", Name: "Reviewer"})
	assertKind(t, err, models.KindAlreadyExists)

	require.NoError(t, s.roles.DeleteRole(ctx, admin, role.ID))
	_, err = s.roles.UpdateRole(ctx, admin, other.ID, RoleInput{Code: "moderator", Name: "Reviewer"})
	require.NoError(t, err)
	_, err = s.roles.RestoreRoles(ctx, admin, []uuid.UUID{role.ID})
	assertKind(t, err, models.KindAlreadyExists)
}

func TestRolePermissionAssignment(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	admin := s.admin(t)

	role, err := s.roles.CreateRole(ctx, admin, RoleInput{Code: "baker", Name: "Baker"})
	require.NoError(t, err)
	read, err := s.permissions.CreatePermission(ctx, admin, PermissionInput{Code: "recipe:read", Name: "Read"})
	require.NoError(t, err)
	create, err := s.permissions.CreatePermission(ctx, admin, PermissionInput{Code: "recipe:create", Name: "Create"})
	require.NoError(t, err)

	_, err = s.permissions.CreatePermission(ctx, admin, PermissionInput{Code: "recipe:read", Name: "Dup"})
	assertKind(t, err, models.KindAlreadyExists)

	got, err := s.roles.AssignPermission(ctx, admin, role.ID, read.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"recipe:read"}, permissionCodes(got))

	got, err = s.roles.SetPermissions(ctx, admin, role.ID, []uuid.UUID{read.ID, create.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recipe:read", "recipe:create"}, permissionCodes(got))

	got, err = s.roles.RevokePermission(ctx, admin, role.ID, read.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"recipe:create"}, permissionCodes(got))

	_, err = s.roles.SetPermissions(ctx, admin, role.ID, []uuid.UUID{uuid.New()})
	assertKind(t, err, models.KindNotFound)

	// deleting a permission drops it from every role
	require.NoError(t, s.permissions.DeletePermission(ctx, admin, create.ID))
	got, err = s.roles.GetRole(ctx, admin, role.ID, models.ViewActive)
	require.NoError(t, err)
	assert.Empty(t, got.Permissions)
}

func TestMergeRolesMovesUsers(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	admin := s.admin(t)
	syncCatalogue(t, s)

	cooks, err := s.roles.CreateRole(ctx, admin, RoleInput{Code: "cooks", Name: "Cooks"})
	require.NoError(t, err)
	user, err := s.roleRepo.FindByCode(ctx, DefaultRoleCode)
	require.NoError(t, err)

	a := s.actor(t, "a")
	b := s.actor(t, "b")
	require.NoError(t, s.userRepo.AddRoles(ctx, a.UserID(), cooks.ID))
	require.NoError(t, s.userRepo.AddRoles(ctx, b.UserID(), cooks.ID, user.ID))

	merged, err := s.roles.MergeRoles(ctx, admin, MergeInput{SourceIDs: []uuid.UUID{cooks.ID}, TargetID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, user.ID, merged.ID)

	for _, uc := range []*models.UserContext{a, b} {
		u, err := s.userRepo.GetWithRoles(ctx, uc.UserID(), models.ViewActive)
		require.NoError(t, err)
		require.Len(t, u.Roles, 1)
		assert.Equal(t, DefaultRoleCode, u.Roles[0].Code)
	}

	_, err = s.roles.GetRole(ctx, admin, cooks.ID, models.ViewActive)
	assertKind(t, err, models.KindNotFound)

	page, err := s.roles.ListRoles(ctx, admin, repository.PageQuery{Page: 1, PerPage: 20})
	require.NoError(t, err)
	for _, r := range page.Items {
		assert.NotEqual(t, "cooks", r.Code)
	}
}

func TestUserAdministration(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	admin := s.admin(t)
	manager := s.actor(t, "manager", "user:read", "user:create", "user:update", "user:delete")

	_, err := s.users.CreateUser(ctx, manager, UserCreateInput{Username: "boss", Password: "password123", IsSuperuser: true})
	assertKind(t, err, models.KindPermissionDenied)

	created, err := s.users.CreateUser(ctx, manager, UserCreateInput{Username: "worker", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = s.users.CreateUser(ctx, admin, UserCreateInput{Username: "worker", Password: "password123"})
	assertKind(t, err, models.KindAlreadyExists)

	worker := &models.UserContext{User: created, Permissions: map[string]struct{}{}}
	name := "Worker Bee"
	updated, err := s.users.UpdateUser(ctx, worker, created.ID, UserUpdateInput{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, *updated.FullName)

	locked := true
	_, err = s.users.UpdateUser(ctx, worker, created.ID, UserUpdateInput{IsLocked: &locked})
	assertKind(t, err, models.KindPermissionDenied)

	err = s.users.ChangePassword(ctx, worker, ChangePasswordInput{OldPassword: "wrong", NewPassword: "newpassword1"})
	require.Error(t, err)
	require.NoError(t, s.users.ChangePassword(ctx, worker, ChangePasswordInput{OldPassword: "password123", NewPassword: "newpassword1"}))

	err = s.users.DeleteUser(ctx, manager, manager.UserID())
	assertKind(t, err, models.KindBusinessRule)
	require.NoError(t, s.users.DeleteUser(ctx, manager, created.ID))

	_, err = s.users.GetUser(ctx, manager, created.ID, models.ViewActive)
	assertKind(t, err, models.KindNotFound)
}
