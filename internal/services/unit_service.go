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

type UnitInput struct {
	Name               string  `json:"name" binding:"required,max=64"`
	Abbreviation       *string `json:"abbreviation" binding:"omitempty,max=16"`
	UseAbbreviation    bool    `json:"use_abbreviation"`
	PluralName         *string `json:"plural_name" binding:"omitempty,max=64"`
	PluralAbbreviation *string `json:"plural_abbreviation" binding:"omitempty,max=16"`
}

func (in UnitInput) apply(u *models.Unit) {
	u.Name = strings.TrimSpace(in.Name)
	u.Abbreviation = in.Abbreviation
	u.UseAbbreviation = in.UseAbbreviation
	u.PluralName = in.PluralName
	u.PluralAbbreviation = in.PluralAbbreviation
}

// UnitService manages measurement units.
type UnitService interface {
	CreateUnit(ctx context.Context, uc *models.UserContext, in UnitInput) (*models.Unit, error)
	UpdateUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID, in UnitInput) (*models.Unit, error)
	GetUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Unit, error)
	ListUnits(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Unit], error)
	DeleteUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	PermanentDeleteUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	MergeUnits(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Unit, error)
}

type unitService struct {
	db    *gorm.DB
	units *repository.UnitRepository
	lc    *lifecycle[models.Unit]
}

func NewUnitService(db *gorm.DB, units *repository.UnitRepository) UnitService {
	return &unitService{
		db:    db,
		units: units,
		lc: &lifecycle[models.Unit]{
			db:     db,
			repo:   units.Repository,
			entity: "unit",
			policy: PolicyFor(ResourceUnit),
			usage:  units.UsageCounts,
			// rows of deleted recipes keep their quantity without a unit
			unlink: units.DetachFromRecipes,
		},
	}
}

func (s *unitService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.units.FindByName(ctx, name)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("unit %q already exists", name)
	}
	return nil
}

func (s *unitService) CreateUnit(ctx context.Context, uc *models.UserContext, in UnitInput) (*models.Unit, error) {
	if err := authorize(PolicyFor(ResourceUnit).CanCreate(uc), "create", "unit"); err != nil {
		return nil, err
	}
	unit := &models.Unit{}
	in.apply(unit)
	if unit.Name == "" {
		return nil, models.NewValidationError("unit name is required")
	}
	unit.StampCreate(uc.ActorID())

	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureNameFree(ctx, unit.Name, uuid.Nil); err != nil {
			return err
		}
		return s.units.Create(ctx, unit)
	})
	if err != nil {
		return nil, translate(err, "unit", unit.Name)
	}
	return unit, nil
}

func (s *unitService) UpdateUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID, in UnitInput) (*models.Unit, error) {
	var unit *models.Unit
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		unit, err = s.units.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceUnit).CanUpdate(uc, unit.OwnerID()), "update", "unit"); err != nil {
			return err
		}
		oldName := unit.Name
		in.apply(unit)
		if unit.Name == "" {
			return models.NewValidationError("unit name is required")
		}
		if !strings.EqualFold(oldName, unit.Name) {
			if err := s.ensureNameFree(ctx, unit.Name, id); err != nil {
				return err
			}
		}
		unit.StampUpdate(uc.ActorID())
		return s.units.Save(ctx, unit)
	})
	if err != nil {
		return nil, translate(err, "unit", id)
	}
	return unit, nil
}

func (s *unitService) GetUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Unit, error) {
	return s.lc.get(ctx, uc, id, mode)
}

func (s *unitService) ListUnits(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Unit], error) {
	return s.lc.list(ctx, uc, q)
}

func (s *unitService) DeleteUnit(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if _, err := s.units.GetByID(ctx, id, models.ViewActive); err != nil {
		return translate(err, "unit", id)
	}
	_, err := s.lc.softDelete(ctx, uc, []uuid.UUID{id})
	return err
}

func (s *unitService) BatchDeleteUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.softDelete(ctx, uc, ids)
}

func (s *unitService) RestoreUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.restore(ctx, uc, ids)
}

func (s *unitService) PermanentDeleteUnits(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.permanentDelete(ctx, uc, ids, nil)
}

func (s *unitService) MergeUnits(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Unit, error) {
	if err := authorize(PolicyFor(ResourceUnit).CanUpdate(uc, nil), "merge", "unit"); err != nil {
		return nil, err
	}
	var target *models.Unit
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		sources, err := s.lc.mergeTargets(ctx, in)
		if err != nil {
			return err
		}
		moved, err := s.units.ReassignRecipes(ctx, sources, in.TargetID)
		if err != nil {
			return err
		}
		if _, err := s.units.SoftDeleteByIDs(ctx, sources, uc.ActorID()); err != nil {
			return err
		}
		log.WithFields(log.Fields{"target": in.TargetID, "sources": len(sources), "rows_moved": moved}).Info("Units merged")
		target, err = s.units.GetByID(ctx, in.TargetID, models.ViewActive)
		return err
	})
	if err != nil {
		return nil, translate(err, "unit", in.TargetID)
	}
	return target, nil
}
