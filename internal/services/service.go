package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MergeInput names the rows folded into a target.
type MergeInput struct {
	SourceIDs []uuid.UUID `json:"source_ids" binding:"required,min=1"`
	TargetID  uuid.UUID   `json:"target_id" binding:"required"`
}

// translate maps persistence errors to the business taxonomy. AppErrors pass through.
func translate(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewAlreadyExistsError("%s already exists", entity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w", entity, err)
	}
}

// found converts a lookup result into (found, error), treating not-found as false.
func found[T any](v *T, err error) (bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// lifecycle implements the read, soft-delete, restore and permanent-delete
// paths shared by every soft-deletable entity.
type lifecycle[T any] struct {
	db     *gorm.DB
	repo   *repository.Repository[T]
	entity string
	policy Policy
	// usage counts active recipes per id; nil when the entity is never referenced.
	usage func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error)
	// unlink removes link rows before a permanent delete.
	unlink func(ctx context.Context, ids []uuid.UUID) error
}

func (l *lifecycle[T]) get(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode, scopes ...repository.Scope) (*T, error) {
	if err := authorize(l.policy.CanRead(uc), "read", l.entity); err != nil {
		return nil, err
	}
	item, err := l.repo.GetByID(ctx, id, mode, scopes...)
	if err != nil {
		return nil, translate(err, l.entity, id)
	}
	return item, nil
}

func (l *lifecycle[T]) list(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[T], error) {
	if err := authorize(l.policy.CanRead(uc), "list", l.entity); err != nil {
		return nil, err
	}
	return l.repo.FindPaged(ctx, q)
}

// ensureUnused refuses when an active recipe references any of ids.
func (l *lifecycle[T]) ensureUnused(ctx context.Context, ids []uuid.UUID) error {
	if l.usage == nil {
		return nil
	}
	counts, err := l.usage(ctx, ids)
	if err != nil {
		return err
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	if total > 0 {
		return models.NewBusinessRuleError("cannot delete: %s is used by %d active recipe(s)", l.entity, total).
			WithDetails(map[string]any{"usage": usageDetails(counts)})
	}
	return nil
}

func usageDetails(counts map[uuid.UUID]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for id, c := range counts {
		if c > 0 {
			out[id.String()] = c
		}
	}
	return out
}

// requireAll loads ids in mode and fails with not-found unless every one exists.
func (l *lifecycle[T]) requireAll(ctx context.Context, ids []uuid.UUID, mode models.ViewMode) ([]T, error) {
	items, err := l.repo.GetByIDs(ctx, ids, mode)
	if err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, missingError(l.entity, mode)
	}
	return items, nil
}

// mayAct reports whether uc holds check in any scope, its own rows included.
// Row-level ownership is decided by authorizeEach once the rows are loaded.
func mayAct(uc *models.UserContext, check func(*models.UserContext, *uuid.UUID) bool) bool {
	if uc == nil || uc.User == nil {
		return false
	}
	self := uc.UserID()
	return check(uc, &self)
}

// authorizeEach runs check against the creator of every item.
func (l *lifecycle[T]) authorizeEach(uc *models.UserContext, items []T, action string, check func(*models.UserContext, *uuid.UUID) bool) error {
	for i := range items {
		var owner *uuid.UUID
		if o, ok := any(&items[i]).(models.Owned); ok {
			owner = o.OwnerID()
		}
		if err := authorize(check(uc, owner), action, l.entity); err != nil {
			return err
		}
	}
	return nil
}

func missingError(entity string, mode models.ViewMode) *models.AppError {
	where := "active"
	if mode == models.ViewDeleted {
		where = "in the recycle bin"
	}
	return models.NewAppError(models.KindNotFound, models.CodeNotFound,
		fmt.Sprintf("one or more %s ids do not exist or are not %s", entity, where))
}

// softDelete marks every id deleted after checking existence and usage.
func (l *lifecycle[T]) softDelete(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	if err := authorize(mayAct(uc, l.policy.CanDelete), "delete", l.entity); err != nil {
		return 0, err
	}
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, l.db, func(ctx context.Context) error {
		items, err := l.requireAll(ctx, ids, models.ViewActive)
		if err != nil {
			return err
		}
		if err := l.authorizeEach(uc, items, "delete", l.policy.CanDelete); err != nil {
			return err
		}
		if err := l.ensureUnused(ctx, ids); err != nil {
			return err
		}
		n, err := l.repo.SoftDeleteByIDs(ctx, ids, uc.ActorID())
		affected = n
		return err
	})
	return affected, translate(err, l.entity, ids)
}

func (l *lifecycle[T]) restore(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error) {
	if err := authorize(mayAct(uc, l.policy.CanUpdate), "restore", l.entity); err != nil {
		return 0, err
	}
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, l.db, func(ctx context.Context) error {
		items, err := l.requireAll(ctx, ids, models.ViewDeleted)
		if err != nil {
			return err
		}
		if err := l.authorizeEach(uc, items, "restore", l.policy.CanUpdate); err != nil {
			return err
		}
		n, err := l.repo.RestoreByIDs(ctx, ids, uc.ActorID())
		affected = n
		return err
	})
	return affected, translate(err, l.entity, ids)
}

// permanentDelete removes rows that are already soft-deleted. guard runs
// inside the transaction before any row is removed.
func (l *lifecycle[T]) permanentDelete(ctx context.Context, uc *models.UserContext, ids []uuid.UUID, guard func(ctx context.Context, items []T) error) (int64, error) {
	if err := authorize(mayAct(uc, l.policy.CanDelete), "permanently delete", l.entity); err != nil {
		return 0, err
	}
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := database.Transaction(ctx, l.db, func(ctx context.Context) error {
		items, err := l.requireAll(ctx, ids, models.ViewDeleted)
		if err != nil {
			return err
		}
		if err := l.authorizeEach(uc, items, "permanently delete", l.policy.CanDelete); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, items); err != nil {
				return err
			}
		}
		if l.unlink != nil {
			if err := l.unlink(ctx, ids); err != nil {
				return err
			}
		}
		n, err := l.repo.HardDeleteByIDs(ctx, ids)
		affected = n
		return err
	})
	return affected, translate(err, l.entity, ids)
}

// mergeTargets validates a merge request and returns the unique source ids.
func (l *lifecycle[T]) mergeTargets(ctx context.Context, in MergeInput) ([]uuid.UUID, error) {
	sources := repository.UniqueIDs(in.SourceIDs)
	if len(sources) == 0 {
		return nil, models.NewValidationError("at least one source %s is required", l.entity)
	}
	for _, id := range sources {
		if id == in.TargetID {
			return nil, models.NewBusinessRuleError("the target %s cannot be one of the sources", l.entity)
		}
	}
	ok, err := l.repo.AreIDsValid(ctx, append(append([]uuid.UUID{}, sources...), in.TargetID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingError(l.entity, models.ViewActive)
	}
	return sources, nil
}
