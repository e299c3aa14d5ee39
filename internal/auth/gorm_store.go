package auth

import (
	"context"
	"errors"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	internalmodels "github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/models"
	"gorm.io/gorm"
)

type GormClientStore struct {
	db *gorm.DB
}

func NewGormClientStore(db *gorm.DB) *GormClientStore {
	return &GormClientStore{db: db}
}

func (s *GormClientStore) GetByID(ctx context.Context, id string) (oauth2.ClientInfo, error) {
	var client internalmodels.OAuthClient
	if err := database.Conn(ctx, s.db).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}

	// OAuthClient implements ClientPasswordVerifier, so secrets are compared as bcrypt hashes.
	return &client, nil
}

// Create registers a client.
func (s *GormClientStore) Create(ctx context.Context, client *internalmodels.OAuthClient) error {
	return database.Conn(ctx, s.db).Create(client).Error
}

// GormTokenStore keeps issued tokens in the oauth_tokens table.
type GormTokenStore struct {
	db *gorm.DB
}

func NewGormTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{db: db}
}

func (s *GormTokenStore) Create(ctx context.Context, info oauth2.TokenInfo) error {
	accessExpires := info.GetAccessCreateAt().Add(info.GetAccessExpiresIn())
	expiresAt := accessExpires
	if info.GetRefresh() != "" {
		if refreshExpires := info.GetRefreshCreateAt().Add(info.GetRefreshExpiresIn()); refreshExpires.After(expiresAt) {
			expiresAt = refreshExpires
		}
	}

	token := &internalmodels.OAuthToken{
		ClientID:         info.GetClientID(),
		UserID:           info.GetUserID(),
		Scope:            info.GetScope(),
		Access:           info.GetAccess(),
		AccessCreatedAt:  info.GetAccessCreateAt().UTC(),
		AccessExpiresIn:  int64(info.GetAccessExpiresIn() / time.Second),
		Refresh:          info.GetRefresh(),
		RefreshCreatedAt: info.GetRefreshCreateAt().UTC(),
		RefreshExpiresIn: int64(info.GetRefreshExpiresIn() / time.Second),
		ExpiresAt:        expiresAt.UTC(),
	}

	return database.Conn(ctx, s.db).Create(token).Error
}

func (s *GormTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return database.Conn(ctx, s.db).Where("access = ?", access).Delete(&internalmodels.OAuthToken{}).Error
}

// RemoveByRefresh detaches the refresh token. The access token of the same
// pair stays valid until it is removed or expires.
func (s *GormTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return database.Conn(ctx, s.db).Model(&internalmodels.OAuthToken{}).
		Where("refresh = ?", refresh).
		Update("refresh", "").Error
}

// GetByAccess returns nil without error when the token is unknown, which the
// manager reports as an invalid access token.
func (s *GormTokenStore) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	return s.find(ctx, "access = ?", access)
}

func (s *GormTokenStore) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	if refresh == "" {
		return nil, nil
	}
	return s.find(ctx, "refresh = ?", refresh)
}

func (s *GormTokenStore) find(ctx context.Context, query string, value string) (oauth2.TokenInfo, error) {
	var token internalmodels.OAuthToken
	err := database.Conn(ctx, s.db).Where(query, value).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toTokenInfo(&token), nil
}

func toTokenInfo(t *internalmodels.OAuthToken) *models.Token {
	return &models.Token{
		ClientID:         t.ClientID,
		UserID:           t.UserID,
		Scope:            t.Scope,
		Access:           t.Access,
		AccessCreateAt:   t.AccessCreatedAt,
		AccessExpiresIn:  time.Duration(t.AccessExpiresIn) * time.Second,
		Refresh:          t.Refresh,
		RefreshCreateAt:  t.RefreshCreatedAt,
		RefreshExpiresIn: time.Duration(t.RefreshExpiresIn) * time.Second,
	}
}

// Authorization codes are not issued; the code methods satisfy oauth2.TokenStore.

func (s *GormTokenStore) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	return nil, nil
}

func (s *GormTokenStore) RemoveByCode(ctx context.Context, code string) error {
	return nil
}

// DeleteExpired removes token rows whose access and refresh tokens have both expired.
func (s *GormTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := database.Conn(ctx, s.db).Where("expires_at < ?", before.UTC()).Delete(&internalmodels.OAuthToken{})
	return res.RowsAffected, res.Error
}
