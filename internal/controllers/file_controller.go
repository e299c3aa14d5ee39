package controllers

import (
	"encoding/json"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// FileController exposes object storage by profile.
type FileController struct {
	service services.FileService
}

func NewFileController(service services.FileService) *FileController {
	return &FileController{service: service}
}

func objectParams(c *gin.Context) (profile, objectName string, err error) {
	profile = c.Query("profile")
	objectName = c.Query("object_name")
	if profile == "" || objectName == "" {
		return "", "", models.NewValidationError("profile and object_name are required")
	}
	return profile, objectName, nil
}

// Upload godoc
// @Summary Upload a file
// @Description Streams a multipart file to the storage profile and records it as an unassociated file record. Content type and size are checked against the profile.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Param profile formData string true "Storage profile"
// @Param metadata formData string false "JSON object stored with the record"
// @Success 201 {object} models.Response{data=models.FileRecord}
// @Failure 400 {object} models.Response
// @Failure 502 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/file/upload [post]
func (fc *FileController) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, models.NewValidationError("multipart field %q is required", "file"))
		return
	}
	in := services.UploadInput{
		Profile:     c.PostForm("profile"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Metadata); err != nil {
			fail(c, models.NewValidationError("metadata must be a JSON object"))
			return
		}
	}

	f, err := header.Open()
	if err != nil {
		fail(c, models.NewFileError("read upload", err))
		return
	}
	defer f.Close()
	in.Body = f

	rec, err := fc.service.Upload(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, rec)
}

// DeleteObject godoc
// @Summary Delete an object
// @Description Refused while a recipe or avatar still uses the object.
// @Tags files
// @Produce json
// @Param profile query string true "Storage profile"
// @Param object_name query string true "Object key"
// @Success 200 {object} models.Response
// @Failure 422 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/file [delete]
func (fc *FileController) DeleteObject(c *gin.Context) {
	profile, name, err := objectParams(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := fc.service.DeleteObject(c.Request.Context(), user(c), profile, name); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// Exists godoc
// @Summary Check an object exists
// @Tags files
// @Produce json
// @Param profile query string true "Storage profile"
// @Param object_name query string true "Object key"
// @Success 200 {object} models.Response{data=bool}
// @Security BearerAuth
// @Router /api/v1/file/exists [get]
func (fc *FileController) Exists(c *gin.Context) {
	profile, name, err := objectParams(c)
	if err != nil {
		fail(c, err)
		return
	}
	exists, err := fc.service.Exists(c.Request.Context(), user(c), profile, name)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, exists)
}

// List godoc
// @Summary List objects
// @Tags files
// @Produce json
// @Param profile query string true "Storage profile"
// @Param prefix query string false "Key prefix"
// @Success 200 {object} models.Response{data=[]storage.ObjectInfo}
// @Security BearerAuth
// @Router /api/v1/file/list [get]
func (fc *FileController) List(c *gin.Context) {
	profile := c.Query("profile")
	if profile == "" {
		fail(c, models.NewValidationError("profile is required"))
		return
	}
	objects, err := fc.service.List(c.Request.Context(), user(c), profile, c.Query("prefix"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, objects)
}

// PresignGet godoc
// @Summary Presigned download url
// @Tags files
// @Produce json
// @Param profile query string true "Storage profile"
// @Param object_name query string true "Object key"
// @Success 200 {object} models.Response{data=string}
// @Security BearerAuth
// @Router /api/v1/file/presigned-url/get [get]
func (fc *FileController) PresignGet(c *gin.Context) {
	profile, name, err := objectParams(c)
	if err != nil {
		fail(c, err)
		return
	}
	url, err := fc.service.PresignGet(c.Request.Context(), user(c), profile, name)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"url": url})
}

func (fc *FileController) presign(c *gin.Context, fn func(*gin.Context, services.PresignInput) (any, error)) {
	var in services.PresignInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	out, err := fn(c, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

// PresignPut godoc
// @Summary Presigned PUT upload
// @Tags files
// @Accept json
// @Produce json
// @Param request body services.PresignInput true "Upload"
// @Success 200 {object} models.Response{data=storage.PresignedUpload}
// @Security BearerAuth
// @Router /api/v1/file/presigned-url/put [post]
func (fc *FileController) PresignPut(c *gin.Context) {
	fc.presign(c, func(c *gin.Context, in services.PresignInput) (any, error) {
		return fc.service.PresignPut(c.Request.Context(), user(c), in)
	})
}

// PresignPolicy godoc
// @Summary Presigned POST policy
// @Description Form fields for a browser POST upload with a size limit. Only for providers that support POST policies.
// @Tags files
// @Accept json
// @Produce json
// @Param request body services.PresignInput true "Upload"
// @Success 200 {object} models.Response{data=storage.PresignedUpload}
// @Security BearerAuth
// @Router /api/v1/file/presigned-url/policy [post]
func (fc *FileController) PresignPolicy(c *gin.Context) {
	fc.presign(c, func(c *gin.Context, in services.PresignInput) (any, error) {
		return fc.service.PresignPost(c.Request.Context(), user(c), in)
	})
}

// PresignUpload godoc
// @Summary Presigned upload
// @Description Chooses POST or PUT from the profile and the provider capabilities.
// @Tags files
// @Accept json
// @Produce json
// @Param request body services.PresignInput true "Upload"
// @Success 200 {object} models.Response{data=storage.PresignedUpload}
// @Security BearerAuth
// @Router /api/v1/file/presigned-url/upload [post]
func (fc *FileController) PresignUpload(c *gin.Context) {
	fc.presign(c, func(c *gin.Context, in services.PresignInput) (any, error) {
		return fc.service.PresignUpload(c.Request.Context(), user(c), in)
	})
}

// Register godoc
// @Summary Register a direct upload
// @Description Records an object uploaded with a presigned request. The object must exist in the bucket.
// @Tags files
// @Accept json
// @Produce json
// @Param request body services.RegisterFileInput true "Object"
// @Success 201 {object} models.Response{data=models.FileRecord}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/file/register [post]
func (fc *FileController) Register(c *gin.Context) {
	var in services.RegisterFileInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	rec, err := fc.service.Register(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, rec)
}
