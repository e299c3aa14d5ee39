package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth map[string]*models.UserContext

func (s stubAuth) Authenticate(_ context.Context, token string) (*models.UserContext, error) {
	uc, ok := s[token]
	if !ok {
		return nil, models.ErrTokenInvalid
	}
	return uc, nil
}

func principal(superuser bool, perms ...string) *models.UserContext {
	uc := &models.UserContext{
		User:        &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, IsSuperuser: superuser},
		Permissions: map[string]struct{}{},
	}
	for _, p := range perms {
		uc.Permissions[p] = struct{}{}
	}
	return uc
}

func setupRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), RequestLogger(), ErrorHandler())

	api := r.Group("/api", BearerAuth(auth))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.OK(CurrentUser(c).UserID()))
	})
	api.GET("/tags", RequirePermission("tag:read"), func(c *gin.Context) {
		c.JSON(http.StatusOK, models.OK("tags"))
	})
	api.GET("/admin", RequireSuperuser(), func(c *gin.Context) {
		c.JSON(http.StatusOK, models.OK("admin"))
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(models.NewNotFoundError("recipe", 7))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("secret detail")
	})
	return r
}

func do(t *testing.T, r http.Handler, path, token string) (*httptest.ResponseRecorder, models.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body models.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestBearerAuth(t *testing.T) {
	reader := principal(false, "tag:read")
	r := setupRouter(stubAuth{"good": reader})

	w, body := do(t, r, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.CodeAuth, body.Code)

	w, body = do(t, r, "/api/me", "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.CodeTokenInvalid, body.Code)

	w, body = do(t, r, "/api/me", "good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CodeSuccess, body.Code)
	assert.Equal(t, reader.UserID().String(), body.Data)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestBearerTokenParsing(t *testing.T) {
	_, err := bearerToken("Basic abc")
	require.Error(t, err)
	_, err = bearerToken("Bearer   ")
	require.Error(t, err)
	token, err := bearerToken("bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestRequirePermission(t *testing.T) {
	r := setupRouter(stubAuth{
		"reader": principal(false, "tag:read"),
		"nobody": principal(false),
		"root":   principal(true),
	})

	w, _ := do(t, r, "/api/tags", "reader")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, r, "/api/tags", "nobody")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.CodeForbidden, body.Code)

	w, _ = do(t, r, "/api/tags", "root")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, "/api/admin", "reader")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(t, r, "/api/admin", "root")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	r := setupRouter(stubAuth{})

	w, body := do(t, r, "/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.CodeNotFound, body.Code)
	assert.Equal(t, "recipe 7 not found", body.Message)

	w, body = do(t, r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.CodeServer, body.Code)
	assert.NotContains(t, body.Message, "connection refused")
}

func TestRecoveryHidesPanic(t *testing.T) {
	r := setupRouter(stubAuth{})

	w, body := do(t, r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.CodeServer, body.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
}
