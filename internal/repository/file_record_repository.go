package repository

import (
	"context"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileRecordRepository struct {
	*Repository[models.FileRecord]
}

func NewFileRecordRepository(db *gorm.DB) *FileRecordRepository {
	return &FileRecordRepository{Repository: NewRepository[models.FileRecord](db)}
}

// FindByObjectName looks up a record by object key in the given view.
func (r *FileRecordRepository) FindByObjectName(ctx context.Context, objectName string, mode models.ViewMode) (*models.FileRecord, error) {
	return r.FindOne(ctx, Where("object_name", objectName), mode)
}

// MarkAssociated sets is_associated on the active records among ids.
func (r *FileRecordRepository) MarkAssociated(ctx context.Context, ids []uuid.UUID, associated bool) (int64, error) {
	ids = UniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).Model(&models.FileRecord{}).
		Where("id IN ? AND is_deleted = ?", uuidValues(ids), false).
		UpdateColumns(map[string]any{"is_associated": associated, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// FindStale returns up to limit records that are unassociated and untouched
// since before, or soft-deleted before it. They are safe to purge.
func (r *FileRecordRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := r.DB(ctx).
		Where("(is_associated = ? AND updated_at < ?) OR (is_deleted = ? AND deleted_at < ?)", false, before, true, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// DeleteIfStale hard-deletes the record only while it is still unassociated
// or soft-deleted. Zero rows means it was picked up again.
func (r *FileRecordRepository) DeleteIfStale(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).
		Where("id = ? AND (is_associated = ? OR is_deleted = ?)", id, false, true).
		Delete(&models.FileRecord{})
	return res.RowsAffected, res.Error
}
