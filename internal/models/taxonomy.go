package models

import "github.com/google/uuid"

type Tag struct {
	BaseModel
	Name string `gorm:"size:64;not null;index" json:"name"`
}

type Unit struct {
	BaseModel
	Name               string  `gorm:"size:64;not null;index" json:"name"`
	Abbreviation       *string `gorm:"size:16" json:"abbreviation,omitempty"`
	UseAbbreviation    bool    `gorm:"not null" json:"use_abbreviation"`
	PluralName         *string `gorm:"size:64" json:"plural_name,omitempty"`
	PluralAbbreviation *string `gorm:"size:16" json:"plural_abbreviation,omitempty"`
}

type Ingredient struct {
	BaseModel
	Name           string  `gorm:"size:128;not null" json:"name"`
	NormalizedName string  `gorm:"size:128;not null;index" json:"normalized_name"`
	PluralName     *string `gorm:"size:128" json:"plural_name,omitempty"`
	Description    *string `json:"description,omitempty"`
}

type Category struct {
	BaseModel
	Name        string     `gorm:"size:128;not null;index" json:"name"`
	Slug        string     `gorm:"size:128;not null;index" json:"slug"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Children []*Category `gorm:"-" json:"children,omitempty"`
}
