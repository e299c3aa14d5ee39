package services

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RoleInput struct {
	Code        string  `json:"code" binding:"required,max=64"`
	Name        string  `json:"name" binding:"required,max=128"`
	Description *string `json:"description"`
}

type RolePermissionsInput struct {
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

type RoleService interface {
	CreateRole(ctx context.Context, uc *models.UserContext, in RoleInput) (*models.Role, error)
	UpdateRole(ctx context.Context, uc *models.UserContext, id uuid.UUID, in RoleInput) (*models.Role, error)
	// GetRole loads the role with its active permissions.
	GetRole(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Role, error)
	ListRoles(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Role], error)
	DeleteRole(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	PermanentDeleteRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	AssignPermission(ctx context.Context, uc *models.UserContext, roleID, permissionID uuid.UUID) (*models.Role, error)
	RevokePermission(ctx context.Context, uc *models.UserContext, roleID, permissionID uuid.UUID) (*models.Role, error)
	SetPermissions(ctx context.Context, uc *models.UserContext, roleID uuid.UUID, permissionIDs []uuid.UUID) (*models.Role, error)
	// MergeRoles moves users and permissions of the sources to the target and deletes the sources.
	MergeRoles(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Role, error)
}

type roleService struct {
	db          *gorm.DB
	roles       *repository.RoleRepository
	permissions *repository.PermissionRepository
	lc          *lifecycle[models.Role]
}

func NewRoleService(db *gorm.DB, roles *repository.RoleRepository, permissions *repository.PermissionRepository) RoleService {
	return &roleService{
		db:          db,
		roles:       roles,
		permissions: permissions,
		lc: &lifecycle[models.Role]{
			db:     db,
			repo:   roles.Repository,
			entity: "role",
			policy: PolicyFor(ResourceRole),
			unlink: roles.ClearLinks,
		},
	}
}

func (s *roleService) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.roles.FindByCode(ctx, code)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("role code %q already exists", code)
	}
	return nil
}

func (in RoleInput) normalized() (code, name string, err error) {
	code = strings.ToLower(strings.TrimSpace(in.Code))
	name = strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return "", "", models.NewValidationError("role code and name are required")
	}
	return code, name, nil
}

func (s *roleService) CreateRole(ctx context.Context, uc *models.UserContext, in RoleInput) (*models.Role, error) {
	if err := authorize(PolicyFor(ResourceRole).CanCreate(uc), "create", "role"); err != nil {
		return nil, err
	}
	code, name, err := in.normalized()
	if err != nil {
		return nil, err
	}
	role := &models.Role{Code: code, Name: name, Description: in.Description}
	role.StampCreate(uc.ActorID())
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureCodeFree(ctx, code, uuid.Nil); err != nil {
			return err
		}
		return s.roles.Create(ctx, role)
	})
	if err != nil {
		return nil, translate(err, "role", code)
	}
	return role, nil
}

func (s *roleService) UpdateRole(ctx context.Context, uc *models.UserContext, id uuid.UUID, in RoleInput) (*models.Role, error) {
	code, name, err := in.normalized()
	if err != nil {
		return nil, err
	}
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		role, err := s.roles.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceRole).CanUpdate(uc, role.OwnerID()), "update", "role"); err != nil {
			return err
		}
		if code != role.Code {
			if err := s.ensureCodeFree(ctx, code, id); err != nil {
				return err
			}
		}
		role.Code = code
		role.Name = name
		role.Description = in.Description
		role.StampUpdate(uc.ActorID())
		return s.roles.Save(ctx, role)
	})
	if err != nil {
		return nil, translate(err, "role", id)
	}
	return s.roles.GetWithPermissions(ctx, id, models.ViewActive)
}

func (s *roleService) GetRole(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Role, error) {
	return s.lc.get(ctx, uc, id, mode, s.roles.WithPermissions)
}

func (s *roleService) ListRoles(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Role], error) {
	return s.lc.list(ctx, uc, q)
}

func (s *roleService) DeleteRole(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if _, err := s.roles.GetByID(ctx, id, models.ViewActive); err != nil {
		return translate(err, "role", id)
	}
	_, err := s.lc.softDelete(ctx, uc, []uuid.UUID{id})
	return err
}

func (s *roleService) BatchDeleteRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.softDelete(ctx, uc, ids)
}

func (s *roleService) RestoreRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	if err := authorize(mayAct(uc, PolicyFor(ResourceRole).CanUpdate), "restore", "role"); err != nil {
		return 0, err
	}
	var affected int64
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		items, err := s.roles.GetByIDs(ctx, repository.UniqueIDs(ids), models.ViewDeleted)
		if err != nil {
			return err
		}
		for _, r := range items {
			if err := s.ensureCodeFree(ctx, r.Code, r.ID); err != nil {
				return err
			}
		}
		affected, err = s.lc.restore(ctx, uc, ids)
		return err
	})
	return affected, translate(err, "role", ids)
}

func (s *roleService) PermanentDeleteRoles(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.permanentDelete(ctx, uc, ids, nil)
}

// changePermissions runs fn against an active role after checking the
// permissions exist, then reloads the role.
func (s *roleService) changePermissions(ctx context.Context, uc *models.UserContext, roleID uuid.UUID, permissionIDs []uuid.UUID, fn func(ctx context.Context) error) (*models.Role, error) {
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		role, err := s.roles.GetByID(ctx, roleID, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceRole).CanUpdate(uc, role.OwnerID()), "change permissions of", "role"); err != nil {
			return err
		}
		ok, err := s.permissions.AreIDsValid(ctx, permissionIDs)
		if err != nil {
			return err
		}
		if !ok {
			return missingError("permission", models.ViewActive)
		}
		return fn(ctx)
	})
	if err != nil {
		return nil, translate(err, "role", roleID)
	}
	return s.roles.GetWithPermissions(ctx, roleID, models.ViewActive)
}

func (s *roleService) AssignPermission(ctx context.Context, uc *models.UserContext, roleID, permissionID uuid.UUID) (*models.Role, error) {
	return s.changePermissions(ctx, uc, roleID, []uuid.UUID{permissionID}, func(ctx context.Context) error {
		return s.roles.AddPermissions(ctx, roleID, permissionID)
	})
}

func (s *roleService) RevokePermission(ctx context.Context, uc *models.UserContext, roleID, permissionID uuid.UUID) (*models.Role, error) {
	return s.changePermissions(ctx, uc, roleID, nil, func(ctx context.Context) error {
		return s.roles.RemovePermissions(ctx, roleID, permissionID)
	})
}

func (s *roleService) SetPermissions(ctx context.Context, uc *models.UserContext, roleID uuid.UUID, permissionIDs []uuid.UUID) (*models.Role, error) {
	ids := repository.UniqueIDs(permissionIDs)
	return s.changePermissions(ctx, uc, roleID, ids, func(ctx context.Context) error {
		return s.roles.ReplacePermissions(ctx, roleID, ids)
	})
}

func (s *roleService) MergeRoles(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Role, error) {
	if err := authorize(PolicyFor(ResourceRole).CanUpdate(uc, nil), "merge", "role"); err != nil {
		return nil, err
	}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		sources, err := s.lc.mergeTargets(ctx, in)
		if err != nil {
			return err
		}
		moved, err := s.roles.ReassignUsers(ctx, sources, in.TargetID)
		if err != nil {
			return err
		}
		if err := s.roles.MergePermissions(ctx, sources, in.TargetID); err != nil {
			return err
		}
		if _, err := s.roles.SoftDeleteByIDs(ctx, sources, uc.ActorID()); err != nil {
			return err
		}
		log.WithFields(log.Fields{"target": in.TargetID, "sources": len(sources), "users_moved": moved}).Info("Roles merged")
		return nil
	})
	if err != nil {
		return nil, translate(err, "role", in.TargetID)
	}
	return s.roles.GetWithPermissions(ctx, in.TargetID, models.ViewActive)
}
