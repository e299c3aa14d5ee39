package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FileRecord tracks an object stored in object storage.
// IsAssociated is true while a business entity references the object; only
// unassociated objects may be physically removed.
type FileRecord struct {
	BaseModel
	ObjectName       string            `gorm:"size:512;not null;uniqueIndex" json:"object_name"`
	OriginalFilename string            `gorm:"size:255;not null" json:"original_filename"`
	FileSize         int64             `gorm:"not null" json:"file_size"`
	ContentType      string            `gorm:"size:128;not null" json:"content_type"`
	Etag             *string           `gorm:"size:128;index" json:"etag,omitempty"`
	ProfileName      string            `gorm:"size:64;not null;index" json:"profile_name"`
	UploaderID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"uploader_id"`
	IsAssociated     bool              `gorm:"not null;index" json:"is_associated"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`

	// URL is filled by the service layer from the storage profile.
	URL string `gorm:"-" json:"url,omitempty"`
}
