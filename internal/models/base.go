package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity, audit and soft-delete columns shared by every business table.
type BaseModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index" json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid;index" json:"updated_by,omitempty"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `gorm:"type:uuid;index" json:"deleted_by,omitempty"`
}

// BeforeCreate assigns a random UUID when the caller did not set one.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// OwnerID returns the creator used by ownership policies.
func (b BaseModel) OwnerID() *uuid.UUID {
	return b.CreatedBy
}

// StampCreate sets the creation audit columns.
func (b *BaseModel) StampCreate(actor *uuid.UUID) {
	b.CreatedBy = actor
	b.UpdatedBy = actor
}

// StampUpdate sets the update audit column.
func (b *BaseModel) StampUpdate(actor *uuid.UUID) {
	b.UpdatedBy = actor
}

// Owned is implemented by every model embedding BaseModel.
type Owned interface {
	OwnerID() *uuid.UUID
}

// ViewMode selects rows by their soft-delete flag.
type ViewMode string

const (
	ViewActive  ViewMode = "active"
	ViewAll     ViewMode = "all"
	ViewDeleted ViewMode = "deleted"
)

// ParseViewMode maps an empty or unknown value to ViewActive.
func ParseViewMode(s string) ViewMode {
	switch ViewMode(s) {
	case ViewAll:
		return ViewAll
	case ViewDeleted:
		return ViewDeleted
	default:
		return ViewActive
	}
}
