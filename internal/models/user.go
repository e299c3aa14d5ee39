package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username       string     `gorm:"size:64;not null;index" json:"username"`
	Email          *string    `gorm:"size:255;index" json:"email,omitempty"`
	Phone          *string    `gorm:"size:32;index" json:"phone,omitempty"`
	FullName       *string    `gorm:"size:128" json:"full_name,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	AvatarFileID   *uuid.UUID `gorm:"type:uuid" json:"avatar_file_id,omitempty"`
	HashedPassword string     `gorm:"not null" json:"-"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	IsSuperuser    bool       `gorm:"not null" json:"is_superuser"`
	IsLocked       bool       `gorm:"not null" json:"is_locked"`
	LoginCount     int        `gorm:"not null" json:"login_count"`
	LoginAttempts  int        `gorm:"not null" json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`

	Roles []Role `gorm:"many2many:user_roles;" json:"roles,omitempty"`
}

// SetPassword stores the bcrypt hash of plain.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.HashedPassword = string(hash)
	return nil
}

// CheckPassword compares plain against the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(plain)) == nil
}

// UserRole links users and roles.
type UserRole struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// UserContext is the authenticated principal resolved for one request.
type UserContext struct {
	User        *User
	RoleCodes   []string
	Permissions map[string]struct{}
}

// NewUserContext flattens the permissions of every active role of u.
func NewUserContext(u *User) *UserContext {
	uc := &UserContext{User: u, Permissions: make(map[string]struct{})}
	for _, r := range u.Roles {
		if r.IsDeleted {
			continue
		}
		uc.RoleCodes = append(uc.RoleCodes, r.Code)
		for _, p := range r.Permissions {
			if !p.IsDeleted {
				uc.Permissions[p.Code] = struct{}{}
			}
		}
	}
	return uc
}

func (uc *UserContext) UserID() uuid.UUID {
	return uc.User.ID
}

// ActorID is the pointer form stored in audit columns.
func (uc *UserContext) ActorID() *uuid.UUID {
	if uc == nil || uc.User == nil || uc.User.ID == uuid.Nil {
		return nil
	}
	id := uc.User.ID
	return &id
}

func (uc *UserContext) IsSuperuser() bool {
	return uc.User != nil && uc.User.IsSuperuser
}

// Has reports whether the user holds the permission code.
func (uc *UserContext) Has(code string) bool {
	_, ok := uc.Permissions[code]
	return ok
}

// PermissionCodes returns the held permission codes in no particular order.
func (uc *UserContext) PermissionCodes() []string {
	codes := make([]string, 0, len(uc.Permissions))
	for c := range uc.Permissions {
		codes = append(codes, c)
	}
	return codes
}
