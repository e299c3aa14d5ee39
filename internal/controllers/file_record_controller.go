package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

type FileRecordController struct {
	service services.FileRecordService
}

func NewFileRecordController(service services.FileRecordService) *FileRecordController {
	return &FileRecordController{service: service}
}

// ListFileRecords godoc
// @Summary List file records
// @Description Records carry their public url when the profile has one.
// @Tags file-records
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.FileRecord]}
// @Security BearerAuth
// @Router /api/v1/file-record [get]
func (fc *FileRecordController) ListFileRecords(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := fc.service.ListFileRecords(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetFileRecord godoc
// @Summary Get a file record
// @Tags file-records
// @Produce json
// @Param id path string true "File record ID"
// @Success 200 {object} models.Response{data=models.FileRecord}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/file-record/{id} [get]
func (fc *FileRecordController) GetFileRecord(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	rec, err := fc.service.GetFileRecord(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}

// UpdateFileRecord godoc
// @Summary Update file record metadata
// @Tags file-records
// @Accept json
// @Produce json
// @Param id path string true "File record ID"
// @Param record body services.FileRecordUpdate true "Metadata"
// @Success 200 {object} models.Response{data=models.FileRecord}
// @Security BearerAuth
// @Router /api/v1/file-record/{id} [put]
func (fc *FileRecordController) UpdateFileRecord(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.FileRecordUpdate
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	rec, err := fc.service.UpdateFileRecord(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rec)
}

// DeleteFileRecord godoc
// @Summary Delete a file record
// @Description Refused while associated. The stored object is removed after the record.
// @Tags file-records
// @Produce json
// @Param id path string true "File record ID"
// @Success 200 {object} models.Response
// @Failure 422 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/file-record/{id} [delete]
func (fc *FileRecordController) DeleteFileRecord(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := fc.service.DeleteFileRecord(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}
