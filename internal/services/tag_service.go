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

type TagInput struct {
	Name string `json:"name" binding:"required,max=64"`
}

// TagService manages recipe tags. Names are unique case-insensitively among active tags.
type TagService interface {
	CreateTag(ctx context.Context, uc *models.UserContext, in TagInput) (*models.Tag, error)
	UpdateTag(ctx context.Context, uc *models.UserContext, id uuid.UUID, in TagInput) (*models.Tag, error)
	GetTag(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Tag, error)
	ListTags(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Tag], error)
	// DeleteTag refuses while an active recipe uses the tag.
	DeleteTag(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	BatchDeleteTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	RestoreTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	PermanentDeleteTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)
	// MergeTags moves the recipe links of the sources to the target and deletes the sources.
	MergeTags(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Tag, error)
	// FindOrCreateByNames returns one active tag per distinct name, creating missing ones.
	FindOrCreateByNames(ctx context.Context, uc *models.UserContext, names []string) ([]models.Tag, error)
}

type tagService struct {
	db   *gorm.DB
	tags *repository.TagRepository
	lc   *lifecycle[models.Tag]
}

func NewTagService(db *gorm.DB, tags *repository.TagRepository) TagService {
	return &tagService{
		db:   db,
		tags: tags,
		lc: &lifecycle[models.Tag]{
			db:     db,
			repo:   tags.Repository,
			entity: "tag",
			policy: PolicyFor(ResourceTag),
			usage:  tags.UsageCounts,
			unlink: tags.ClearLinks,
		},
	}
}

func (s *tagService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.tags.FindByName(ctx, name)
	ok, err := found(existing, err)
	if err != nil {
		return err
	}
	if ok && existing.ID != self {
		return models.NewAlreadyExistsError("tag %q already exists", name)
	}
	return nil
}

func (s *tagService) CreateTag(ctx context.Context, uc *models.UserContext, in TagInput) (*models.Tag, error) {
	if err := authorize(PolicyFor(ResourceTag).CanCreate(uc), "create", "tag"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("tag name is required")
	}

	tag := &models.Tag{Name: name}
	tag.StampCreate(uc.ActorID())
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
			return err
		}
		return s.tags.Create(ctx, tag)
	})
	if err != nil {
		return nil, translate(err, "tag", name)
	}
	return tag, nil
}

func (s *tagService) UpdateTag(ctx context.Context, uc *models.UserContext, id uuid.UUID, in TagInput) (*models.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("tag name is required")
	}
	var tag *models.Tag
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		tag, err = s.tags.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceTag).CanUpdate(uc, tag.OwnerID()), "update", "tag"); err != nil {
			return err
		}
		if !strings.EqualFold(tag.Name, name) {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return err
			}
		}
		tag.Name = name
		tag.StampUpdate(uc.ActorID())
		return s.tags.Save(ctx, tag)
	})
	if err != nil {
		return nil, translate(err, "tag", id)
	}
	return tag, nil
}

func (s *tagService) GetTag(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.Tag, error) {
	return s.lc.get(ctx, uc, id, mode)
}

func (s *tagService) ListTags(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.Tag], error) {
	return s.lc.list(ctx, uc, q)
}

func (s *tagService) DeleteTag(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	if _, err := s.tags.GetByID(ctx, id, models.ViewActive); err != nil {
		return translate(err, "tag", id)
	}
	_, err := s.lc.softDelete(ctx, uc, []uuid.UUID{id})
	return err
}

func (s *tagService) BatchDeleteTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.softDelete(ctx, uc, ids)
}

func (s *tagService) RestoreTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.restore(ctx, uc, ids)
}

func (s *tagService) PermanentDeleteTags(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	return s.lc.permanentDelete(ctx, uc, ids, nil)
}

func (s *tagService) MergeTags(ctx context.Context, uc *models.UserContext, in MergeInput) (*models.Tag, error) {
	if err := authorize(PolicyFor(ResourceTag).CanUpdate(uc, nil), "merge", "tag"); err != nil {
		return nil, err
	}
	var target *models.Tag
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		sources, err := s.lc.mergeTargets(ctx, in)
		if err != nil {
			return err
		}
		moved, err := s.tags.ReassignRecipes(ctx, sources, in.TargetID)
		if err != nil {
			return err
		}
		if _, err := s.tags.SoftDeleteByIDs(ctx, sources, uc.ActorID()); err != nil {
			return err
		}
		log.WithFields(log.Fields{"target": in.TargetID, "sources": len(sources), "links_moved": moved}).Info("Tags merged")
		target, err = s.tags.GetByID(ctx, in.TargetID, models.ViewActive)
		return err
	})
	if err != nil {
		return nil, translate(err, "tag", in.TargetID)
	}
	return target, nil
}

func (s *tagService) FindOrCreateByNames(ctx context.Context, uc *models.UserContext, names []string) ([]models.Tag, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]models.Tag, 0, len(names))
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			key := strings.ToLower(name)
			if name == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			tag, err := s.tags.FindByNameForUpdate(ctx, name)
			ok, err := found(tag, err)
			if err != nil {
				return err
			}
			if !ok {
				tag = &models.Tag{Name: name}
				tag.StampCreate(uc.ActorID())
				if err := s.tags.Create(ctx, tag); err != nil {
					return err
				}
				log.WithField("tag", name).Debug("Tag created on demand")
			}
			out = append(out, *tag)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "tag", names)
	}
	return out, nil
}
