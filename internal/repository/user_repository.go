package repository

import (
	"context"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	*Repository[models.User]
	roleLinks linkTable
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		Repository: NewRepository[models.User](db),
		roleLinks:  linkTable{db: db, name: "user_roles", ownerCol: "user_id", refCol: "role_id"},
	}
}

// WithRoles preloads active roles and their active permissions.
func (r *UserRepository) WithRoles(db *gorm.DB) *gorm.DB {
	return db.Preload("Roles", activeOnly).Preload("Roles.Permissions", activeOnly)
}

// FindByUsername looks up an active user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.FindOne(ctx, Where("username", username), models.ViewActive, r.WithRoles)
}

// GetWithRoles loads one user with roles and permissions.
func (r *UserRepository) GetWithRoles(ctx context.Context, id uuid.UUID, mode models.ViewMode) (*models.User, error) {
	return r.GetByID(ctx, id, mode, r.WithRoles)
}

func (r *UserRepository) ReplaceRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	return r.roleLinks.Replace(ctx, userID, roleIDs)
}

func (r *UserRepository) AddRoles(ctx context.Context, userID uuid.UUID, roleIDs ...uuid.UUID) error {
	return r.roleLinks.Add(ctx, userID, roleIDs...)
}

// ClearLinks drops the role memberships of the users.
func (r *UserRepository) ClearLinks(ctx context.Context, ids []uuid.UUID) error {
	return r.roleLinks.DeleteByOwners(ctx, ids)
}
