package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UploadInput is one file streamed through the API.
type UploadInput struct {
	Profile     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
	PathParams  map[string]string
	Metadata    map[string]any
}

type PresignInput struct {
	Profile     string `json:"profile" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
	ForcePost   bool   `json:"force_post"`
}

// RegisterFileInput records an object a client uploaded directly with a presigned request.
type RegisterFileInput struct {
	Profile          string         `json:"profile" binding:"required"`
	ObjectName       string         `json:"object_name" binding:"required"`
	OriginalFilename string         `json:"original_filename" binding:"required,max=255"`
	Metadata         map[string]any `json:"metadata"`
}

type FileService interface {
	Upload(ctx context.Context, uc *models.UserContext, in UploadInput) (*models.FileRecord, error)
	DeleteObject(ctx context.Context, uc *models.UserContext, profile, objectName string) error
	Exists(ctx context.Context, uc *models.UserContext, profile, objectName string) (bool, error)
	List(ctx context.Context, uc *models.UserContext, profile, prefix string) ([]storage.ObjectInfo, error)
	PresignGet(ctx context.Context, uc *models.UserContext, profile, objectName string) (string, error)
	PresignPut(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error)
	PresignPost(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error)
	// PresignUpload picks POST or PUT from the profile, see storage.Factory.GeneratePresignedUpload.
	PresignUpload(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error)
	Register(ctx context.Context, uc *models.UserContext, in RegisterFileInput) (*models.FileRecord, error)
}

type fileService struct {
	db      *gorm.DB
	records *repository.FileRecordRepository
	files   *storage.Factory
	policy  Policy
}

func NewFileService(db *gorm.DB, records *repository.FileRecordRepository, files *storage.Factory) FileService {
	return &fileService{db: db, records: records, files: files, policy: PolicyFor(ResourceFile)}
}

func pathParams(uc *models.UserContext, extra map[string]string) map[string]string {
	params := map[string]string{}
	if id := uc.ActorID(); id != nil {
		params["user_id"] = id.String()
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// storageError keeps AppErrors and wraps everything else as a file error.
func storageError(msg string, err error) error {
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, storage.ErrProfileNotFound) {
		return models.NewValidationError("%s", err.Error())
	}
	return models.NewFileError(msg, err)
}

func (s *fileService) Upload(ctx context.Context, uc *models.UserContext, in UploadInput) (*models.FileRecord, error) {
	if err := authorize(s.policy.CanCreate(uc), "upload", "file"); err != nil {
		return nil, err
	}
	rec, err := uploadFile(ctx, s.files, uc, in)
	if err != nil {
		return nil, err
	}
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		discardObject(ctx, s.files, in.Profile, rec.ObjectName)
		return nil, translate(err, "file record", rec.ObjectName)
	}
	withURL(s.files, rec)
	return rec, nil
}

// uploadFile validates in against its profile, stores the object and returns
// an unsaved record describing it.
func uploadFile(ctx context.Context, files *storage.Factory, uc *models.UserContext, in UploadInput) (*models.FileRecord, error) {
	profile, err := files.Profile(in.Profile)
	if err != nil {
		return nil, storageError("storage profile unavailable", err)
	}
	if err := storage.ValidateUpload(profile, in.ContentType, in.Size); err != nil {
		return nil, err
	}
	key, err := files.ObjectName(profile, in.Filename, pathParams(uc, in.PathParams))
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}
	info, err := files.Upload(ctx, in.Profile, key, in.Body, in.Size, in.ContentType)
	if err != nil {
		return nil, err
	}

	rec := &models.FileRecord{
		ObjectName:       key,
		OriginalFilename: in.Filename,
		FileSize:         in.Size,
		ContentType:      in.ContentType,
		ProfileName:      in.Profile,
		Metadata:         datatypes.JSONMap(in.Metadata),
	}
	if info.ETag != "" {
		etag := info.ETag
		rec.Etag = &etag
	}
	if id := uc.ActorID(); id != nil {
		rec.UploaderID = *id
	}
	rec.StampCreate(uc.ActorID())
	return rec, nil
}

// discardObject compensates an upload whose database write failed.
func discardObject(ctx context.Context, files *storage.Factory, profile, key string) {
	client, _, err := files.ClientForProfile(profile)
	if err == nil {
		err = client.DeleteObject(ctx, key)
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"object_name": key, "profile": profile, "critical": true}).
			Error("Failed to remove uploaded object after database error")
	}
}

func (s *fileService) DeleteObject(ctx context.Context, uc *models.UserContext, profile, objectName string) error {
	var rec *models.FileRecord
	err := database.Transaction(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.records.FindByObjectName(ctx, objectName, models.ViewActive)
		ok, err := found(existing, err)
		if err != nil {
			return err
		}
		if !ok {
			return authorize(s.policy.CanDelete(uc, nil), "delete", "file")
		}
		if err := authorize(s.policy.CanDelete(uc, &existing.UploaderID), "delete", "file"); err != nil {
			return err
		}
		if existing.IsAssociated {
			return models.NewBusinessRuleError("file %s is still in use and cannot be deleted", objectName)
		}
		rec = existing
		_, err = s.records.SoftDelete(ctx, existing.ID, uc.ActorID())
		return err
	})
	if err != nil {
		return translate(err, "file", objectName)
	}
	if rec != nil {
		removeObjects(ctx, s.files, s.records, []models.FileRecord{*rec})
		return nil
	}
	client, _, err := s.files.ClientForProfile(profile)
	if err != nil {
		return storageError("storage profile unavailable", err)
	}
	if err := client.DeleteObject(ctx, objectName); err != nil {
		return storageError("could not delete object", err)
	}
	return nil
}

func (s *fileService) Exists(ctx context.Context, uc *models.UserContext, profile, objectName string) (bool, error) {
	if err := authorize(s.policy.CanRead(uc), "read", "file"); err != nil {
		return false, err
	}
	client, _, err := s.files.ClientForProfile(profile)
	if err != nil {
		return false, storageError("storage profile unavailable", err)
	}
	ok, err := client.ObjectExists(ctx, objectName)
	if err != nil {
		return false, storageError("could not check object", err)
	}
	return ok, nil
}

func (s *fileService) List(ctx context.Context, uc *models.UserContext, profile, prefix string) ([]storage.ObjectInfo, error) {
	if err := authorize(s.policy.CanRead(uc), "list", "file"); err != nil {
		return nil, err
	}
	client, _, err := s.files.ClientForProfile(profile)
	if err != nil {
		return nil, storageError("storage profile unavailable", err)
	}
	objects, err := client.ListObjects(ctx, strings.TrimLeft(prefix, "/"))
	if err != nil {
		return nil, storageError("could not list objects", err)
	}
	return objects, nil
}

func (s *fileService) PresignGet(ctx context.Context, uc *models.UserContext, profile, objectName string) (string, error) {
	if err := authorize(s.policy.CanRead(uc), "read", "file"); err != nil {
		return "", err
	}
	client, p, err := s.files.ClientForProfile(profile)
	if err != nil {
		return "", storageError("storage profile unavailable", err)
	}
	url, err := client.PresignGet(ctx, objectName, p.Expiry())
	if err != nil {
		return "", storageError("could not generate download URL", err)
	}
	return url, nil
}

func (s *fileService) PresignPut(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error) {
	if err := authorize(s.policy.CanCreate(uc), "upload", "file"); err != nil {
		return nil, err
	}
	client, p, err := s.files.ClientForProfile(in.Profile)
	if err != nil {
		return nil, storageError("storage profile unavailable", err)
	}
	if err := storage.ValidateUpload(p, in.ContentType, in.Size); err != nil {
		return nil, err
	}
	key, err := s.files.ObjectName(p, in.Filename, pathParams(uc, nil))
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}
	url, err := client.PresignPut(ctx, key, in.ContentType, p.Expiry())
	if err != nil {
		return nil, storageError("could not generate upload URL", err)
	}
	return &storage.PresignedUpload{
		Method:     storage.PresignPut,
		UploadURL:  url,
		Headers:    map[string]string{"Content-Type": in.ContentType},
		ObjectName: key,
		URL:        client.BuildURL(key),
		ExpiresAt:  time.Now().Add(p.Expiry()).UTC(),
	}, nil
}

func (s *fileService) PresignPost(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error) {
	in.ForcePost = true
	return s.PresignUpload(ctx, uc, in)
}

func (s *fileService) PresignUpload(ctx context.Context, uc *models.UserContext, in PresignInput) (*storage.PresignedUpload, error) {
	if err := authorize(s.policy.CanCreate(uc), "upload", "file"); err != nil {
		return nil, err
	}
	up, err := s.files.GeneratePresignedUpload(ctx, storage.UploadRequest{
		Profile:     in.Profile,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
		ForcePost:   in.ForcePost,
		PathParams:  pathParams(uc, nil),
	})
	if err != nil {
		return nil, storageError("could not generate upload", err)
	}
	return up, nil
}

func (s *fileService) Register(ctx context.Context, uc *models.UserContext, in RegisterFileInput) (*models.FileRecord, error) {
	if err := authorize(s.policy.CanCreate(uc), "register", "file"); err != nil {
		return nil, err
	}
	p, err := s.files.Profile(in.Profile)
	if err != nil {
		return nil, storageError("storage profile unavailable", err)
	}
	info, err := s.files.Stat(ctx, in.Profile, in.ObjectName)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, models.NewValidationError("object %s has not been uploaded", in.ObjectName)
	}
	if err != nil {
		return nil, storageError("could not read uploaded object", err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if info.ContentType != "" && !p.Allows(info.ContentType) {
		return nil, models.NewValidationError("unsupported file type for profile %s: %s", p.Name, info.ContentType)
	}
	if info.Size > p.MaxBytes() {
		return nil, models.NewValidationError("file is too large, max size is %dMB", p.MaxBytes()/(1024*1024))
	}

	rec := &models.FileRecord{
		ObjectName:       in.ObjectName,
		OriginalFilename: strings.TrimSpace(in.OriginalFilename),
		FileSize:         info.Size,
		ContentType:      contentType,
		ProfileName:      in.Profile,
		Metadata:         datatypes.JSONMap(in.Metadata),
	}
	if info.ETag != "" {
		etag := info.ETag
		rec.Etag = &etag
	}
	if id := uc.ActorID(); id != nil {
		rec.UploaderID = *id
	}
	rec.StampCreate(uc.ActorID())

	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.records.FindByObjectName(ctx, in.ObjectName, models.ViewAll)
		ok, err := found(existing, err)
		if err != nil {
			return err
		}
		if ok {
			return models.NewAlreadyExistsError("object %s is already registered", in.ObjectName)
		}
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		return nil, translate(err, "file record", in.ObjectName)
	}
	withURL(s.files, rec)
	return rec, nil
}
