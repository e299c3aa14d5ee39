package models

import (
	"time"
)

// OAuthToken persists issued access/refresh pairs for the database token store.
type OAuthToken struct {
	ID               uint   `gorm:"primaryKey"`
	ClientID         string `gorm:"size:64;not null;index"`
	UserID           string `gorm:"size:64;index"` // empty for client credentials
	Scope            string
	Access           string    `gorm:"size:1024;uniqueIndex;not null"`
	AccessCreatedAt  time.Time `gorm:"not null"`
	AccessExpiresIn  int64     `gorm:"not null"` // seconds
	Refresh          string    `gorm:"size:1024;index"`
	RefreshCreatedAt time.Time
	RefreshExpiresIn int64
	// ExpiresAt is the later of the two expiries and drives cleanup.
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
