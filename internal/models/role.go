package models

import "github.com/google/uuid"

type Role struct {
	BaseModel
	Code        string  `gorm:"size:64;not null;index" json:"code"`
	Name        string  `gorm:"size:128;not null" json:"name"`
	Description *string `json:"description,omitempty"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

// Permission codes follow resource:action or resource:action:scope, e.g. recipe:update:own.
type Permission struct {
	BaseModel
	Code        string  `gorm:"size:128;not null;index" json:"code"`
	Name        string  `gorm:"size:128;not null" json:"name"`
	Group       *string `gorm:"column:group_name;size:64" json:"group,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RolePermission links roles and permissions.
type RolePermission struct {
	RoleID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PermissionID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
