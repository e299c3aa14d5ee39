package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func tokenRouter(svc *OAuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/oauth/token", svc.HandleToken)
	return router
}

func postToken(router *gin.Engine, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func createServiceClient(t *testing.T, svc *OAuthService, id, secret, grants string) {
	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	require.NoError(t, err)
	serviceUser := uuid.New()
	require.NoError(t, svc.Clients().Create(context.Background(), &models.OAuthClient{
		ID:         id,
		Secret:     string(hashedSecret),
		Domain:     "http://localhost:8080",
		Scopes:     "read write",
		GrantTypes: grants,
		UserID:     &serviceUser,
	}))
}

func TestClientCredentialsFlow(t *testing.T) {
	svc, _ := setupOAuth(t)
	createServiceClient(t, svc, "test_client_id", "test_secret", "client_credentials")

	w, body := postToken(tokenRouter(svc), url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"test_client_id"},
		"client_secret": {"test_secret"},
		"scope":         {"read"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Bearer", body["token_type"])
	accessToken := body["access_token"].(string)
	assert.Contains(t, accessToken, ".")
	assert.NotContains(t, body, "refresh_token")

	_, err := svc.ValidateAccessToken(context.Background(), accessToken)
	assert.NoError(t, err)
}

func TestClientCredentialsInvalidSecret(t *testing.T) {
	svc, _ := setupOAuth(t)
	createServiceClient(t, svc, "test_client_id", "correct_secret", "client_credentials")

	w, body := postToken(tokenRouter(svc), url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"test_client_id"},
		"client_secret": {"wrong_secret"},
	})

	assert.GreaterOrEqual(t, w.Code, 400)
	assert.Equal(t, "invalid_client", body["error"])
}

func TestGrantNotAllowedForClient(t *testing.T) {
	svc, _ := setupOAuth(t)

	// The first-party client only allows password and refresh_token.
	w, body := postToken(tokenRouter(svc), url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"web"},
		"client_secret": {"web-secret"},
	})

	assert.GreaterOrEqual(t, w.Code, 400)
	assert.Equal(t, "unauthorized_client", body["error"])
}

func TestPasswordGrant(t *testing.T) {
	svc, _ := setupOAuth(t)
	userID := uuid.NewString()
	svc.SetPasswordVerifier(func(ctx context.Context, username, password string) (string, error) {
		if username == "alice" && password == "s3cret-pass" {
			return userID, nil
		}
		return "", models.ErrInvalidCredential
	})
	router := tokenRouter(svc)

	w, body := postToken(router, url.Values{
		"grant_type":    {"password"},
		"client_id":     {"web"},
		"client_secret": {"web-secret"},
		"username":      {"alice"},
		"password":      {"s3cret-pass"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, body, "refresh_token")

	claims, err := svc.ValidateAccessToken(context.Background(), body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	// The refresh grant rotates through the same endpoint.
	w, refreshed := postToken(router, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {"web"},
		"client_secret": {"web-secret"},
		"refresh_token": {body["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEqual(t, body["access_token"], refreshed["access_token"])

	w, body = postToken(router, url.Values{
		"grant_type":    {"password"},
		"client_id":     {"web"},
		"client_secret": {"web-secret"},
		"username":      {"alice"},
		"password":      {"wrong"},
	})
	assert.GreaterOrEqual(t, w.Code, 400)
	assert.Equal(t, "invalid_grant", body["error"])
}
