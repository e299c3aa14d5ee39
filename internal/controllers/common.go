package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IDsRequest is the body of batch delete, restore and permanent delete.
type IDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// Query parameters consumed by pageQuery; every other parameter is a filter.
var pagingParams = map[string]struct{}{
	"page":      {},
	"per_page":  {},
	"order_by":  {},
	"view_mode": {},
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, models.OK(data))
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, models.OK(data))
}

// fail hands err to the error middleware.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return models.NewValidationError("invalid request body").WithDetails(map[string]any{"fields": fields})
	}
	return models.NewValidationError("invalid request body: %s", err.Error())
}

func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError("invalid %s: %q", name, c.Param(name))
	}
	return id, nil
}

func viewMode(c *gin.Context) models.ViewMode {
	return models.ParseViewMode(c.Query("view_mode"))
}

// pageQuery reads page, per_page, order_by and view_mode, and turns every
// other parameter not listed in reserved into a field__op filter. __or__
// carries a JSON object of OR-combined conditions.
func pageQuery(c *gin.Context, reserved ...string) (repository.PageQuery, error) {
	q := repository.PageQuery{
		Page:     atoiDefault(c.Query("page"), 1),
		PerPage:  atoiDefault(c.Query("per_page"), repository.DefaultPerPage),
		Sort:     repository.ParseSort(c.QueryArray("order_by")...),
		ViewMode: viewMode(c),
	}
	skip := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		skip[r] = struct{}{}
	}

	raw := make(map[string]any)
	for key, values := range c.Request.URL.Query() {
		if _, ok := pagingParams[key]; ok {
			continue
		}
		if _, ok := skip[key]; ok || len(values) == 0 {
			continue
		}
		if key == repository.OrKey {
			var nested map[string]any
			if err := json.Unmarshal([]byte(values[0]), &nested); err != nil {
				return q, models.NewValidationError("__or__ must be a JSON object")
			}
			raw[key] = nested
			continue
		}
		if len(values) > 1 {
			raw[key] = strings.Join(values, ",")
		} else {
			raw[key] = values[0]
		}
	}
	q.Filter = repository.ParseFilters(raw)
	return q.Normalize(), nil
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// queryIDs parses a comma separated or repeated list of uuids.
func queryIDs(c *gin.Context, name string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range c.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, models.NewValidationError("invalid id in %s: %q", name, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func user(c *gin.Context) *models.UserContext {
	return middleware.CurrentUser(c)
}

// batchFunc is a bulk service operation over ids.
type batchFunc func(ctx context.Context, uc *models.UserContext, ids []uuid.UUID) (int64, error)

// batch binds an IDsRequest, runs fn and answers with the affected count.
func batch(fn batchFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IDsRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		n, err := fn(c.Request.Context(), user(c), req.IDs)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, models.BatchResult{Affected: n})
	}
}
