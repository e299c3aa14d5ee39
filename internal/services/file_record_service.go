package services

import (
	"context"
	"errors"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type FileRecordUpdate struct {
	OriginalFilename *string        `json:"original_filename" binding:"omitempty,max=255"`
	Metadata         map[string]any `json:"metadata"`
}

// FileRecordService manages the database side of stored objects.
type FileRecordService interface {
	ListFileRecords(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.FileRecord], error)
	GetFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.FileRecord, error)
	UpdateFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID, in FileRecordUpdate) (*models.FileRecord, error)
	// DeleteFileRecord refuses associated records. The object is removed after commit.
	DeleteFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID) error
	// MarkAssociated fails unless every id is an active record. It joins the caller's transaction.
	MarkAssociated(ctx context.Context, ids []uuid.UUID) error
	MarkUnassociated(ctx context.Context, ids []uuid.UUID) error
}

type fileRecordService struct {
	db      *gorm.DB
	records *repository.FileRecordRepository
	files   *storage.Factory
	lc      *lifecycle[models.FileRecord]
}

func NewFileRecordService(db *gorm.DB, records *repository.FileRecordRepository, files *storage.Factory) FileRecordService {
	return &fileRecordService{
		db:      db,
		records: records,
		files:   files,
		lc: &lifecycle[models.FileRecord]{
			db:     db,
			repo:   records.Repository,
			entity: "file record",
			policy: PolicyFor(ResourceFile),
		},
	}
}

// withURL fills the public URL of each record from its profile.
func withURL(files *storage.Factory, rec *models.FileRecord) {
	if rec == nil || files == nil {
		return
	}
	rec.URL = files.URL(rec.ProfileName, rec.ObjectName)
}

func (s *fileRecordService) ListFileRecords(ctx context.Context, uc *models.UserContext, q repository.PageQuery) (*repository.Page[models.FileRecord], error) {
	page, err := s.lc.list(ctx, uc, q)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		withURL(s.files, &page.Items[i])
	}
	return page, nil
}

func (s *fileRecordService) GetFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID, mode models.ViewMode) (*models.FileRecord, error) {
	rec, err := s.lc.get(ctx, uc, id, mode)
	if err != nil {
		return nil, err
	}
	withURL(s.files, rec)
	return rec, nil
}

func (s *fileRecordService) UpdateFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID, in FileRecordUpdate) (*models.FileRecord, error) {
	var rec *models.FileRecord
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		rec, err = s.records.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceFile).CanUpdate(uc, &rec.UploaderID), "update", "file"); err != nil {
			return err
		}
		if in.OriginalFilename != nil {
			name := strings.TrimSpace(*in.OriginalFilename)
			if name == "" {
				return models.NewValidationError("original filename cannot be empty")
			}
			rec.OriginalFilename = name
		}
		if in.Metadata != nil {
			rec.Metadata = in.Metadata
		}
		rec.StampUpdate(uc.ActorID())
		return s.records.Save(ctx, rec)
	})
	if err != nil {
		return nil, translate(err, "file record", id)
	}
	withURL(s.files, rec)
	return rec, nil
}

func (s *fileRecordService) DeleteFileRecord(ctx context.Context, uc *models.UserContext, id uuid.UUID) error {
	var rec *models.FileRecord
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		var err error
		rec, err = s.records.GetByID(ctx, id, models.ViewActive)
		if err != nil {
			return err
		}
		if err := authorize(PolicyFor(ResourceFile).CanDelete(uc, &rec.UploaderID), "delete", "file"); err != nil {
			return err
		}
		if rec.IsAssociated {
			return models.NewBusinessRuleError("file %s is still in use and cannot be deleted", rec.OriginalFilename)
		}
		_, err = s.records.SoftDelete(ctx, id, uc.ActorID())
		return err
	})
	if err != nil {
		return translate(err, "file record", id)
	}
	removeObjects(ctx, s.files, s.records, []models.FileRecord{*rec})
	return nil
}

func (s *fileRecordService) MarkAssociated(ctx context.Context, ids []uuid.UUID) error {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	ok, err := s.records.AreIDsValid(ctx, ids)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewValidationError("one or more file ids do not exist")
	}
	_, err = s.records.MarkAssociated(ctx, ids, true)
	return err
}

func (s *fileRecordService) MarkUnassociated(ctx context.Context, ids []uuid.UUID) error {
	_, err := s.records.MarkAssociated(ctx, ids, false)
	return err
}

// removeObjects deletes the objects of records that were already released in
// a committed transaction, then drops the rows. A failed object delete is
// logged as critical and the row is left for the reconciler.
func removeObjects(ctx context.Context, files *storage.Factory, records *repository.FileRecordRepository, recs []models.FileRecord) {
	for _, rec := range recs {
		logger := log.WithFields(log.Fields{"file_id": rec.ID, "object_name": rec.ObjectName, "profile": rec.ProfileName})
		client, _, err := files.ClientForProfile(rec.ProfileName)
		if err == nil {
			err = client.DeleteObject(ctx, rec.ObjectName)
		}
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			logger.WithError(err).WithField("critical", true).Error("Failed to delete stored object after commit, left for reconciliation")
			continue
		}
		if _, err := records.HardDeleteByIDs(ctx, []uuid.UUID{rec.ID}); err != nil {
			logger.WithError(err).Warn("Stored object deleted but its record remains")
		}
	}
}
