package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func avatar() AvatarInput {
	return AvatarInput{
		Filename:    "me.png",
		ContentType: "image/png",
		Size:        int64(len(pngBytes)),
		Body:        bytes.NewReader(pngBytes),
	}
}

func TestUploadStoresObjectAndRecord(t *testing.T) {
	s := newStack(t)
	uc := s.actor(t, "uploader", memberPerms...)

	rec := s.uploadImage(t, uc)
	assert.True(t, strings.HasPrefix(rec.ObjectName, "recipes/"))
	assert.True(t, strings.HasSuffix(rec.ObjectName, ".png"))
	assert.Equal(t, "photo.PNG", rec.OriginalFilename)
	assert.Equal(t, uc.UserID(), rec.UploaderID)
	assert.False(t, rec.IsAssociated)
	assert.NotEmpty(t, rec.URL)
	assert.True(t, s.mem.Has(rec.ObjectName))
}

func TestUploadValidatesProfile(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	_, err := s.files.Upload(ctx, uc, UploadInput{
		Profile: "recipe", Filename: "notes.txt", ContentType: "text/plain",
		Size: 4, Body: bytes.NewReader([]byte("oops")),
	})
	assertKind(t, err, models.KindValidation)

	_, err = s.files.Upload(ctx, uc, UploadInput{
		Profile: "missing", Filename: "a.png", ContentType: "image/png",
		Size: 4, Body: bytes.NewReader([]byte("oops")),
	})
	assertKind(t, err, models.KindValidation)

	big := make([]byte, 6*1024*1024)
	_, err = s.files.Upload(ctx, uc, UploadInput{
		Profile: "recipe", Filename: "big.png", ContentType: "image/png",
		Size: int64(len(big)), Body: bytes.NewReader(big),
	})
	assertKind(t, err, models.KindValidation)
	assert.Empty(t, s.mem.Keys())
}

func TestUploadFailureLeavesNoRecord(t *testing.T) {
	s := newStack(t)
	uc := s.admin(t)
	s.mem.FailPuts = true

	_, err := s.files.Upload(context.Background(), uc, UploadInput{
		Profile: "recipe", Filename: "a.png", ContentType: "image/png",
		Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, s.db.Model(&models.FileRecord{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDeleteAssociatedFileIsRefused(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)
	img := s.uploadImage(t, uc)

	_, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Bread", CoverImageID: &img.ID})
	require.NoError(t, err)

	err = s.records.DeleteFileRecord(ctx, uc, img.ID)
	assertKind(t, err, models.KindBusinessRule)
	err = s.files.DeleteObject(ctx, uc, "recipe", img.ObjectName)
	assertKind(t, err, models.KindBusinessRule)
	assert.True(t, s.mem.Has(img.ObjectName))

	loose := s.uploadImage(t, uc)
	require.NoError(t, s.records.DeleteFileRecord(ctx, uc, loose.ID))
	assert.False(t, s.mem.Has(loose.ObjectName))
	_, err = s.recordRepo.GetByID(ctx, loose.ID, models.ViewAll)
	require.Error(t, err)
}

func TestDeleteOthersFileNeedsAnyScope(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := s.actor(t, "alice", memberPerms...)
	bob := s.actor(t, "bob", memberPerms...)
	img := s.uploadImage(t, alice)

	err := s.records.DeleteFileRecord(ctx, bob, img.ID)
	assertKind(t, err, models.KindPermissionDenied)
	require.NoError(t, s.records.DeleteFileRecord(ctx, alice, img.ID))
}

func TestRegisterPresignedUpload(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	_, err := s.files.Register(ctx, uc, RegisterFileInput{Profile: "recipe", ObjectName: "recipes/none.png", OriginalFilename: "none.png"})
	assertKind(t, err, models.KindValidation)

	up, err := s.files.PresignUpload(ctx, uc, PresignInput{Profile: "recipe", Filename: "dish.jpg", ContentType: "image/jpeg", Size: 100})
	require.NoError(t, err)
	require.NotEmpty(t, up.ObjectName)
	s.mem.Put(up.ObjectName, "image/jpeg", make([]byte, 100))

	rec, err := s.files.Register(ctx, uc, RegisterFileInput{Profile: "recipe", ObjectName: up.ObjectName, OriginalFilename: "dish.jpg"})
	require.NoError(t, err)
	assert.EqualValues(t, 100, rec.FileSize)
	assert.Equal(t, "image/jpeg", rec.ContentType)
	assert.NotNil(t, rec.Etag)

	_, err = s.files.Register(ctx, uc, RegisterFileInput{Profile: "recipe", ObjectName: up.ObjectName, OriginalFilename: "dish.jpg"})
	assertKind(t, err, models.KindAlreadyExists)
}

func TestUpdateAvatarReplacesPreviousObject(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.actor(t, "face")

	first, err := s.users.UpdateAvatar(ctx, uc, avatar())
	require.NoError(t, err)
	require.NotNil(t, first.AvatarFileID)
	require.NotNil(t, first.AvatarURL)
	oldRec, err := s.recordRepo.GetByID(ctx, *first.AvatarFileID, models.ViewAll)
	require.NoError(t, err)
	assert.True(t, oldRec.IsAssociated)
	assert.True(t, strings.HasPrefix(oldRec.ObjectName, "avatars/"+uc.UserID().String()+"/"))

	second, err := s.users.UpdateAvatar(ctx, uc, avatar())
	require.NoError(t, err)
	assert.NotEqual(t, *first.AvatarFileID, *second.AvatarFileID)

	assert.False(t, s.mem.Has(oldRec.ObjectName))
	_, err = s.recordRepo.GetByID(ctx, oldRec.ID, models.ViewAll)
	require.Error(t, err)
	assert.Len(t, s.mem.Keys(), 1)
}

func TestUpdateAvatarKeepsUnassociatedRecordWhenDeleteFails(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.actor(t, "face")

	first, err := s.users.UpdateAvatar(ctx, uc, avatar())
	require.NoError(t, err)

	s.mem.FailDeletes = true
	_, err = s.users.UpdateAvatar(ctx, uc, avatar())
	require.NoError(t, err)

	old, err := s.recordRepo.GetByID(ctx, *first.AvatarFileID, models.ViewAll)
	require.NoError(t, err)
	assert.False(t, old.IsAssociated)
	assert.True(t, s.mem.Has(old.ObjectName))
	assert.Len(t, s.mem.Keys(), 2)
}

func TestUpdateAvatarRejectsWrongType(t *testing.T) {
	s := newStack(t)
	uc := s.actor(t, "face")

	in := avatar()
	in.ContentType = "application/pdf"
	in.Filename = "cv.pdf"
	_, err := s.users.UpdateAvatar(context.Background(), uc, in)
	assertKind(t, err, models.KindValidation)
	assert.Empty(t, s.mem.Keys())
}

func TestReconcilerPurgesStaleObjects(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)

	loose := s.uploadImage(t, uc)
	used := s.uploadImage(t, uc)
	_, err := s.recipes.CreateRecipe(ctx, uc, RecipeInput{Title: "Kept", CoverImageID: &used.ID})
	require.NoError(t, err)

	report, err := s.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)

	s.reconciler.now = func() time.Time { return time.Now().Add(2 * DefaultGracePeriod) }
	report, err = s.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.EqualValues(t, 1, report.Purged)
	assert.Zero(t, report.Failed)

	assert.False(t, s.mem.Has(loose.ObjectName))
	assert.True(t, s.mem.Has(used.ObjectName))
	_, err = s.recordRepo.GetByID(ctx, loose.ID, models.ViewAll)
	require.Error(t, err)
	assert.True(t, s.associated(t, used.ID))
}

func TestReconcilerKeepsRecordWhenObjectDeleteFails(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	uc := s.admin(t)
	loose := s.uploadImage(t, uc)

	s.mem.FailDeletes = true
	s.reconciler.now = func() time.Time { return time.Now().Add(2 * DefaultGracePeriod) }
	report, err := s.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Failed)
	assert.Zero(t, report.Purged)

	rec, err := s.recordRepo.GetByID(ctx, loose.ID, models.ViewAll)
	require.NoError(t, err)
	assert.Equal(t, loose.ObjectName, rec.ObjectName)

	s.mem.FailDeletes = false
	report, err = s.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Purged)
}

func TestGetFileRecord(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := s.actor(t, "alice", memberPerms...)
	img := s.uploadImage(t, alice)

	got, err := s.records.GetFileRecord(ctx, alice, img.ID, models.ViewActive)
	require.NoError(t, err)
	assert.Equal(t, img.ObjectName, got.ObjectName)

	_, err = s.records.GetFileRecord(ctx, alice, uuid.New(), models.ViewActive)
	assertKind(t, err, models.KindNotFound)
}
