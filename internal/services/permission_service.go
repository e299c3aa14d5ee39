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

type PermissionInput struct {
	Code        string  `json:"code" binding:"required,max=128"`
	Name        string  `json:"name" binding:"required,max=128"`
	Group       *string `json:"group" binding:"omitempty,max=64"`
	Description *string `json:"description"`
}

// SyncReport counts what a catalogue sync changed.
type SyncReport struct {
	PermissionsCreated int `json:"permissions_created"`
	PermissionsUpdated int `json:"permissions_updated"`
	RolesCreated       int `json:"roles_created"`
	RolesSynced        int `json:"roles_synced"`
}

type PermissionService interface {
	CreatePermission(ctx context.Context, uc *models.UserContext, in PermissionInput) (*models.Permission, error)
	UpdatePermission(ctx context.Context, uc *models.UserContext, id uuid.UUID, in PermissionInput) (*models.Permission, error)
	GetPermission(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Permission, error)
	ListPermissions(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Permission], error)
	DeletePermission(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	// SyncCatalogue upserts every catalogue permission by code and grants each
	// catalogue role the permissions its patterns expand to.
	SyncCatalogue(ctx context.Context, uc *models.UserContext, cat *database.Catalogue) (*SyncReport, error)
}

type permissionService struct {
	db          *gorm.DB
	permissions *repository.PermissionRepository
	roles       *repository.RoleRepository
	lc          *lifecycle[models.Permission]
}

func NewPermissionService(db *gorm.DB, permissions *repository.PermissionRepository, roles *repository.RoleRepository) PermissionService {
	return &permissionService{
		db:          db,
		permissions: permissions,
		roles:       roles,
		lc: &lifecycle[models.Permission]{
			db:     db,
			repo:   permissions.Repository,
			entity: "permission",
			policy: PolicyFor(ResourcePermission),
			unlink: permissions.ClearLinks,
		},
	}
}

func (s *permissionService) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.permissions.FindByCode(ctx, code, models.ViewActive)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("permission code %q already exists", code)
	}
	return nil
}

func (in PermissionInput) apply(p *models.Permission) error {
	p.Code = strings.ToLower(strings.TrimSpace(in.Code))
	p.Name = strings.TrimSpace(in.Name)
	p.Group = in.Group
	p.Description = in.Description
	if p.Code == "" || p.Name == "" {
		return models.NewValidationError("permission code and name are required")
	}
	return nil
}

func (s *permissionService) CreatePermission(ctx context.Context, uc *models.UserContext, in PermissionInput) (*models.Permission, error) {
	if err := authorize(PolicyFor(ResourcePermission).CanCreate(uc), "create", "permission"); err != nil {
		return nil, err
	}
	perm := &models.Permission{}
	if err := in.apply(perm); err != nil {
		return nil, err
	}
	perm.StampCreate(uc.ActorID())
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureCodeFree(ctx, perm.Code, uuid.Nil); err != nil {
			return err
		}
		return s.permissions.Create(ctx, perm)
	})
	if err != nil {
		return nil, translate(err, "permission", perm.Code)
	}
	return perm, nil
}

func (s *permissionService) UpdatePermission(ctx context.Context, uc *models.UserContext, id uuid.UUID, in PermissionInput) (*models.Permission, error) {
	var perm *models.Permission
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		perm, err = s.permissions.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourcePermission).CanUpdate(uc, perm.OwnerID()), "update", "permission"); err != nil {
			return err
		}
		oldCode := perm.Code
		if err := in.apply(perm); err != nil {
			return err
		}
		if perm.Code != oldCode {
			if err := s.ensureCodeFree(ctx, perm.Code, id); err != nil {
				return err
			}
		}
		perm.StampUpdate(uc.ActorID())
		return s.permissions.Save(ctx, perm)
	})
	if err != nil {
		return nil, translate(err, "permission", id)
	}
	return perm, nil
}

func (s *permissionService) GetPermission(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Permission, error) {
	return s.lc.get(ctx, uc, id, mode)
}

func (s *permissionService) ListPermissions(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Permission], error) {
	return s.lc.list(ctx, uc, q)
}

// DeletePermission soft-deletes the permission and detaches it from every role.
func (s *permissionService) DeletePermission(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if err := authorize(PolicyFor(ResourcePermission).CanDelete(uc, nil), "delete", "permission"); err != nil {
		return err
	}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.permissions.GetByID(ctx, id, models.ViewActive); err != nil {
			return err
		}
		if err := s.permissions.ClearLinks(ctx, []uuid.UUID{id}); err != nil {
			return err
		}
		_, err := s.permissions.SoftDelete(ctx, id, uc.ActorID())
		return err
	})
	return translate(err, "permission", id)
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func (s *permissionService) SyncCatalogue(ctx context.Context, uc *models.UserContext, cat *database.Catalogue) (*SyncReport, error) {
	if err := authorize(PolicyFor(ResourcePermission).CanCreate(uc), "sync", "permission"); err != nil {
		return nil, err
	}
	report := &SyncReport{}
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		byCode := make(map[string]uuid.UUID, len(cat.Permissions))
		for _, cp := range cat.Permissions {
			perm, err := s.permissions.FindByCode(ctx, cp.Code, models.ViewAll)
			ok, err := found(perm, err)
			if err != nil {
				return err
			}
			if !ok {
				perm = &models.Permission{Code: cp.Code}
				perm.StampCreate(uc.ActorID())
				report.PermissionsCreated++
			} else {
				perm.StampUpdate(uc.ActorID())
				report.PermissionsUpdated++
			}
			perm.Name = cp.Name
			perm.Group = optional(cp.Group)
			perm.Description = optional(cp.Description)
			perm.IsDeleted = false
			perm.DeletedAt = nil
			perm.DeletedBy = nil
			if err := s.permissions.Save(ctx, perm); err != nil {
				return err
			}
			byCode[perm.Code] = perm.ID
		}

		for _, cr := range cat.Roles {
			role, err := s.roles.FindByCode(ctx, cr.Code)
			ok, err := found(role, err)
			if err != nil {
				return err
			}
			if !ok {
				role = &models.Role{Code: cr.Code, Name: cr.Name, Description: optional(cr.Description)}
				role.StampCreate(uc.ActorID())
				if err := s.roles.Create(ctx, role); err != nil {
					return err
				}
				report.RolesCreated++
			}
			var ids []uuid.UUID
			for _, code := range cat.RolePermissions(cr) {
				ids = append(ids, byCode[code])
			}
			// sync only adds, grants made by hand survive
			if err := s.roles.AddPermissions(ctx, role.ID, ids...); err != nil {
				return err
			}
			report.RolesSynced++
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "permission", "catalogue")
	}
	log.WithFields(log.Fields{
		"permissions_created": report.PermissionsCreated,
		"permissions_updated": report.PermissionsUpdated,
		"roles_created":       report.RolesCreated,
	}).Info("Permission catalogue synced")
	return report, nil
}
