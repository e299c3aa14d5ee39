package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Options configures token issuance. ClientID and ClientSecret identify the
// first-party client the JSON login endpoints issue tokens through.
type Options struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ClientID        string
	ClientSecret    string
}

// PasswordVerifier checks resource-owner credentials and returns the user id.
type PasswordVerifier func(ctx context.Context, username, password string) (string, error)

// TokenPair is the token response of the login and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

type OAuthService struct {
	server         *server.Server
	manager        *manage.Manager
	tokens         *JWTAccessGenerate
	clients        *GormClientStore
	opts           Options
	verifyPassword PasswordVerifier
}

// NewOAuthService wires the token manager for the password, refresh_token and
// client_credentials grants. Issued tokens are JWTs kept in tokenStore, so a
// removed token fails validation before it expires.
func NewOAuthService(db *gorm.DB, tokenStore oauth2.TokenStore, opts Options) *OAuthService {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	manager := manage.NewDefaultManager()
	manager.SetPasswordTokenCfg(&manage.Config{
		AccessTokenExp:    opts.AccessTokenTTL,
		RefreshTokenExp:   opts.RefreshTokenTTL,
		IsGenerateRefresh: true,
	})
	manager.SetClientTokenCfg(&manage.Config{
		AccessTokenExp: opts.AccessTokenTTL,
	})
	// Refreshing rotates both tokens and removes the old pair.
	manager.SetRefreshTokenCfg(&manage.RefreshingConfig{
		AccessTokenExp:     opts.AccessTokenTTL,
		RefreshTokenExp:    opts.RefreshTokenTTL,
		IsGenerateRefresh:  true,
		IsResetRefreshTime: true,
		IsRemoveAccess:     true,
		IsRemoveRefreshing: true,
	})

	tokens := NewJWTAccessGenerate([]byte(opts.JWTSecret), jwt.SigningMethodHS512, opts.Issuer)
	manager.MapAccessGenerate(tokens)
	manager.MapTokenStorage(tokenStore)

	clientStore := NewGormClientStore(db)
	manager.MapClientStorage(clientStore)

	o := &OAuthService{
		manager: manager,
		tokens:  tokens,
		clients: clientStore,
		opts:    opts,
	}

	srv := server.NewDefaultServer(manager)
	srv.SetAllowedGrantType(oauth2.PasswordCredentials, oauth2.Refreshing, oauth2.ClientCredentials)
	srv.SetClientInfoHandler(server.ClientFormHandler)
	srv.SetPasswordAuthorizationHandler(o.passwordAuthorization)
	srv.SetClientAuthorizedHandler(o.clientAuthorized)
	srv.SetInternalErrorHandler(func(err error) *oautherrors.Response {
		log.WithError(err).Error("OAuth2 token endpoint error")
		return nil
	})
	o.server = srv

	return o
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

func (o *OAuthService) Clients() *GormClientStore {
	return o.clients
}

// SetPasswordVerifier installs the credential check used by the password grant.
func (o *OAuthService) SetPasswordVerifier(fn PasswordVerifier) {
	o.verifyPassword = fn
}

func (o *OAuthService) passwordAuthorization(ctx context.Context, clientID, username, password string) (string, error) {
	if o.verifyPassword == nil {
		return "", oautherrors.ErrAccessDenied
	}
	userID, err := o.verifyPassword(ctx, username, password)
	if err != nil {
		log.WithFields(log.Fields{"client_id": clientID, "username": username}).
			WithError(err).Info("Password grant rejected")
		return "", oautherrors.ErrInvalidGrant
	}
	return userID, nil
}

func (o *OAuthService) clientAuthorized(clientID string, grant oauth2.GrantType) (bool, error) {
	info, err := o.clients.GetByID(context.Background(), clientID)
	if err != nil {
		return false, oautherrors.ErrInvalidClient
	}
	client, ok := info.(*models.OAuthClient)
	if !ok {
		return true, nil
	}
	return client.AllowsGrant(grant.String()), nil
}

// EnsureClient registers the first-party client when it does not exist yet.
func (o *OAuthService) EnsureClient(ctx context.Context) error {
	if o.opts.ClientID == "" {
		return errors.New("oauth: first-party client id is not configured")
	}
	if _, err := o.clients.GetByID(ctx, o.opts.ClientID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load oauth client: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.opts.ClientSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash client secret: %w", err)
	}
	client := &models.OAuthClient{
		ID:         o.opts.ClientID,
		Secret:     string(hash),
		Name:       "First-party web client",
		GrantTypes: "password refresh_token",
		Public:     o.opts.ClientSecret == "",
	}
	if err := o.clients.Create(ctx, client); err != nil {
		return fmt.Errorf("create oauth client: %w", err)
	}
	log.WithField("client_id", client.ID).Info("First-party OAuth2 client registered")
	return nil
}

// IssueForUser runs the password grant for an already authenticated user.
func (o *OAuthService) IssueForUser(ctx context.Context, userID string) (*TokenPair, error) {
	ti, err := o.manager.GenerateAccessToken(ctx, oauth2.PasswordCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     o.opts.ClientID,
		ClientSecret: o.opts.ClientSecret,
		UserID:       userID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return newTokenPair(ti), nil
}

// Refresh rotates a refresh token. The old access and refresh tokens are revoked.
func (o *OAuthService) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	if _, err := o.tokens.Parse(refresh, TokenTypeRefresh); err != nil {
		return nil, err
	}
	ti, err := o.manager.RefreshAccessToken(ctx, &oauth2.TokenGenerateRequest{
		ClientID:     o.opts.ClientID,
		ClientSecret: o.opts.ClientSecret,
		Refresh:      refresh,
	})
	if err != nil {
		return nil, mapManagerError(err)
	}
	return newTokenPair(ti), nil
}

// Revoke removes the access token and, when given, the refresh token.
func (o *OAuthService) Revoke(ctx context.Context, access, refresh string) error {
	if access != "" {
		if err := o.manager.RemoveAccessToken(ctx, access); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}
	if refresh != "" {
		if err := o.manager.RemoveRefreshToken(ctx, refresh); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	return nil
}

// ValidateAccessToken verifies the JWT and checks that the token store still
// holds it.
func (o *OAuthService) ValidateAccessToken(ctx context.Context, raw string) (*Claims, error) {
	claims, err := o.tokens.Parse(raw, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if _, err := o.manager.LoadAccessToken(ctx, raw); err != nil {
		return nil, mapManagerError(err)
	}
	return claims, nil
}

func mapManagerError(err error) error {
	switch {
	case errors.Is(err, oautherrors.ErrExpiredAccessToken), errors.Is(err, oautherrors.ErrExpiredRefreshToken):
		return models.ErrTokenExpired
	case errors.Is(err, oautherrors.ErrInvalidAccessToken), errors.Is(err, oautherrors.ErrInvalidRefreshToken):
		return models.ErrTokenRevoked
	case errors.Is(err, oautherrors.ErrInvalidClient):
		return models.ErrTokenInvalid
	default:
		return fmt.Errorf("token manager: %w", err)
	}
}

func newTokenPair(ti oauth2.TokenInfo) *TokenPair {
	return &TokenPair{
		AccessToken:  ti.GetAccess(),
		RefreshToken: ti.GetRefresh(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(ti.GetAccessExpiresIn() / time.Second),
		Scope:        ti.GetScope(),
	}
}
