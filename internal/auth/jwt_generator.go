package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the JWT claims of both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Type     string `json:"type"`
	ClientID string `json:"client_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// JWTAccessGenerate signs access and refresh tokens as JWTs. It implements
// oauth2.AccessGenerate so the token manager uses it for every grant.
type JWTAccessGenerate struct {
	SignedKey    []byte
	SignedMethod jwt.SigningMethod
	Issuer       string
}

// NewJWTAccessGenerate creates a generator signing with an HMAC key.
func NewJWTAccessGenerate(key []byte, method jwt.SigningMethod, issuer string) *JWTAccessGenerate {
	return &JWTAccessGenerate{
		SignedKey:    key,
		SignedMethod: method,
		Issuer:       issuer,
	}
}

// Token generates the access token and, when requested, the refresh token.
func (g *JWTAccessGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic, isGenRefresh bool) (string, string, error) {
	// client_credentials carries no user; the client's service account stands in.
	userID := data.UserID
	if userID == "" {
		userID = data.Client.GetUserID()
	}
	if userID == "" {
		return "", "", fmt.Errorf("cannot generate token: no user ID available")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", "", fmt.Errorf("cannot generate token: invalid user ID %q: %w", userID, err)
	}

	ti := data.TokenInfo
	accessCreated := ti.GetAccessCreateAt()
	access, err := g.sign(Claims{
		RegisteredClaims: g.registered(userID, data.Client.GetID(), accessCreated, ti.GetAccessExpiresIn()),
		UserID:           userID,
		Type:             TokenTypeAccess,
		ClientID:         data.Client.GetID(),
		Scope:            ti.GetScope(),
	})
	if err != nil {
		return "", "", err
	}

	refresh := ""
	if isGenRefresh {
		refreshCreated := ti.GetRefreshCreateAt()
		if refreshCreated.IsZero() {
			refreshCreated = accessCreated
		}
		refresh, err = g.sign(Claims{
			RegisteredClaims: g.registered(userID, data.Client.GetID(), refreshCreated, ti.GetRefreshExpiresIn()),
			UserID:           userID,
			Type:             TokenTypeRefresh,
			ClientID:         data.Client.GetID(),
		})
		if err != nil {
			return "", "", err
		}
	}

	return access, refresh, nil
}

func (g *JWTAccessGenerate) registered(userID, audience string, issuedAt time.Time, ttl time.Duration) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    g.Issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}
	if audience != "" {
		rc.Audience = jwt.ClaimStrings{audience}
	}
	if ttl > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}
	return rc
}

func (g *JWTAccessGenerate) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(g.SignedMethod, claims).SignedString(g.SignedKey)
}

// Parse verifies signature, issuer and expiry of raw and checks its type.
// Failures map to the token sentinels of the models package.
func (g *JWTAccessGenerate) Parse(raw, expectedType string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{g.SignedMethod.Alg()})}
	if g.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return g.SignedKey, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, models.ErrTokenExpired
	case err != nil:
		return nil, models.ErrTokenInvalid
	}

	if claims.Type != expectedType {
		return nil, models.ErrTokenTypeMismatch
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}
