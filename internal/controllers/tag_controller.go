package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// TagController handles HTTP requests related to tags
type TagController struct {
	service services.TagService
}

func NewTagController(service services.TagService) *TagController {
	return &TagController{service: service}
}

// ListTags godoc
// @Summary List tags
// @Description Paginated tags. Any other query parameter is a field__op filter.
// @Tags tags
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.Tag]}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/tag [get]
func (tc *TagController) ListTags(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := tc.service.ListTags(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetTag godoc
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Param view_mode query string false "active, deleted or all"
// @Success 200 {object} models.Response{data=models.Tag}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/tag/{id} [get]
func (tc *TagController) GetTag(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	tag, err := tc.service.GetTag(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tag)
}

// CreateTag godoc
// @Summary Create a tag
// @Description Tag names are unique ignoring case.
// @Tags tags
// @Accept json
// @Produce json
// @Param tag body services.TagInput true "Tag"
// @Success 201 {object} models.Response{data=models.Tag}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/tag [post]
func (tc *TagController) CreateTag(c *gin.Context) {
	var in services.TagInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	tag, err := tc.service.CreateTag(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, tag)
}

// UpdateTag godoc
// @Summary Update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param tag body services.TagInput true "Tag"
// @Success 200 {object} models.Response{data=models.Tag}
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/tag/{id} [put]
func (tc *TagController) UpdateTag(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.TagInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	tag, err := tc.service.UpdateTag(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tag)
}

// DeleteTag godoc
// @Summary Soft-delete a tag
// @Description Refused while an active recipe uses the tag.
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} models.Response
// @Failure 422 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/tag/{id} [delete]
func (tc *TagController) DeleteTag(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := tc.service.DeleteTag(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// BatchDeleteTags godoc
// @Summary Soft-delete tags
// @Tags tags
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Tag IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/tag/batch [delete]
func (tc *TagController) BatchDeleteTags(c *gin.Context) {
	batch(tc.service.BatchDeleteTags)(c)
}

// RestoreTags godoc
// @Summary Restore soft-deleted tags
// @Tags tags
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Tag IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/tag/restore [post]
func (tc *TagController) RestoreTags(c *gin.Context) {
	batch(tc.service.RestoreTags)(c)
}

// PermanentDeleteTags godoc
// @Summary Permanently delete tags from the recycle bin
// @Tags tags
// @Accept json
// @Produce json
// @Param ids body IDsRequest true "Tag IDs"
// @Success 200 {object} models.Response{data=models.BatchResult}
// @Security BearerAuth
// @Router /api/v1/tag/permanent-delete [delete]
func (tc *TagController) PermanentDeleteTags(c *gin.Context) {
	batch(tc.service.PermanentDeleteTags)(c)
}

// MergeTags godoc
// @Summary Merge tags into a target
// @Description Recipes of the sources are linked to the target and the sources are soft-deleted.
// @Tags tags
// @Accept json
// @Produce json
// @Param merge body services.MergeInput true "Sources and target"
// @Success 200 {object} models.Response{data=models.Tag}
// @Security BearerAuth
// @Router /api/v1/tag/merge [post]
func (tc *TagController) MergeTags(c *gin.Context) {
	var in services.MergeInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	tag, err := tc.service.MergeTags(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tag)
}
