package auth

import (
	"context"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-jwt-secret-key-32-characters"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(database.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testOptions() Options {
	return Options{
		JWTSecret:       testSecret,
		Issuer:          "recipes-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ClientID:        "web",
		ClientSecret:    "web-secret",
	}
}

func setupOAuth(t *testing.T) (*OAuthService, *gorm.DB) {
	db := setupTestDB(t)
	svc := NewOAuthService(db, NewGormTokenStore(db), testOptions())
	require.NoError(t, svc.EnsureClient(context.Background()))
	return svc, db
}

func TestOAuthServerInitialization(t *testing.T) {
	db := setupTestDB(t)

	oauthService := NewOAuthService(db, NewGormTokenStore(db), Options{JWTSecret: testSecret, ClientID: "web"})
	assert.NotNil(t, oauthService)
	assert.NotNil(t, oauthService.GetServer())
	assert.Equal(t, DefaultAccessTokenTTL, oauthService.opts.AccessTokenTTL)
	assert.Equal(t, DefaultRefreshTokenTTL, oauthService.opts.RefreshTokenTTL)
}

func TestEnsureClientIsIdempotent(t *testing.T) {
	svc, db := setupOAuth(t)
	require.NoError(t, svc.EnsureClient(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.OAuthClient{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	info, err := svc.Clients().GetByID(context.Background(), "web")
	require.NoError(t, err)
	client := info.(*models.OAuthClient)
	assert.True(t, client.VerifyPassword("web-secret"))
	assert.False(t, client.VerifyPassword("other"))
	assert.True(t, client.AllowsGrant("refresh_token"))
	assert.False(t, client.AllowsGrant("client_credentials"))
}

func TestIssueAndValidateToken(t *testing.T) {
	svc, _ := setupOAuth(t)
	ctx := context.Background()
	userID := uuid.New()

	pair, err := svc.IssueForUser(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.EqualValues(t, 60, pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "recipes-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejectsRefreshToken(t *testing.T) {
	svc, _ := setupOAuth(t)
	pair, err := svc.IssueForUser(context.Background(), uuid.NewString())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenTypeMismatch)

	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenTypeMismatch)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, _ := setupOAuth(t)
	_, err := svc.ValidateAccessToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	other := NewJWTAccessGenerate([]byte("another-secret-another-secret-123"), jwt.SigningMethodHS512, "recipes-test")
	forged, err := other.sign(Claims{UserID: uuid.NewString(), Type: TokenTypeAccess})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(context.Background(), forged)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	g := NewJWTAccessGenerate([]byte(testSecret), jwt.SigningMethodHS512, "")
	past := time.Now().Add(-2 * time.Hour)
	raw, err := g.sign(Claims{
		RegisteredClaims: g.registered(uuid.NewString(), "web", past, time.Minute),
		UserID:           uuid.NewString(),
		Type:             TokenTypeAccess,
	})
	require.NoError(t, err)

	_, err = g.Parse(raw, TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	svc, _ := setupOAuth(t)
	ctx := context.Background()
	pair, err := svc.IssueForUser(ctx, uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken, pair.RefreshToken))

	_, err = svc.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := setupOAuth(t)
	ctx := context.Background()
	userID := uuid.NewString()
	first, err := svc.IssueForUser(ctx, userID)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := svc.ValidateAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	_, err = svc.ValidateAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestGormTokenStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormTokenStore(db)
	ctx := context.Background()

	ti, err := store.GetByAccess(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, ti)
	ti, err = store.GetByRefresh(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, ti)

	svc := NewOAuthService(db, store, testOptions())
	require.NoError(t, svc.EnsureClient(ctx))
	pair, err := svc.IssueForUser(ctx, uuid.NewString())
	require.NoError(t, err)

	ti, err = store.GetByRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, ti)
	assert.Equal(t, pair.AccessToken, ti.GetAccess())
	assert.Equal(t, time.Minute, ti.GetAccessExpiresIn())
	assert.Equal(t, time.Hour, ti.GetRefreshExpiresIn())

	removed, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
	removed, err = store.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestClientStoreIntegration(t *testing.T) {
	db := setupTestDB(t)

	client := &models.OAuthClient{
		ID:     "integration_test_client",
		Secret: "integration_test_secret",
		Domain: "http://localhost:8080",
		Scopes: "read write",
	}
	require.NoError(t, db.Create(client).Error)

	clientStore := NewGormClientStore(db)
	retrievedClient, err := clientStore.GetByID(context.Background(), "integration_test_client")
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", retrievedClient.GetDomain())

	_, err = clientStore.GetByID(context.Background(), "missing")
	assert.Error(t, err)
}
