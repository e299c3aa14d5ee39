package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OAuthClient is a registered OAuth2 client. It implements oauth2.ClientInfo
// and oauth2.ClientPasswordVerifier so the token manager can use it directly.
type OAuthClient struct {
	ID         string     `gorm:"primaryKey;size:64" json:"client_id"`
	Secret     string     `gorm:"not null" json:"-"` // bcrypt hash, empty for public clients
	Name       string     `gorm:"size:128" json:"name"`
	Domain     string     `gorm:"size:255" json:"domain"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // service account used by client_credentials
	Scopes     string     `json:"scopes"`                                   // Space-separated list of allowed scopes
	GrantTypes string     `json:"grant_types"`                              // Space-separated list: "password refresh_token client_credentials"
	Public     bool       `gorm:"not null" json:"public"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

func (c *OAuthClient) GetID() string {
	return c.ID
}

func (c *OAuthClient) GetSecret() string {
	return c.Secret
}

func (c *OAuthClient) GetDomain() string {
	return c.Domain
}

func (c *OAuthClient) IsPublic() bool {
	return c.Public
}

func (c *OAuthClient) GetUserID() string {
	if c.UserID == nil {
		return ""
	}
	return c.UserID.String()
}

// VerifyPassword checks the presented secret against the stored bcrypt hash.
// Public clients carry no secret and always verify.
func (c *OAuthClient) VerifyPassword(secret string) bool {
	if c.Public {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}

// AllowsGrant reports whether the client may use grant. An empty grant list allows every grant.
func (c *OAuthClient) AllowsGrant(grant string) bool {
	if strings.TrimSpace(c.GrantTypes) == "" {
		return true
	}
	for _, g := range strings.Fields(c.GrantTypes) {
		if g == grant {
			return true
		}
	}
	return false
}
