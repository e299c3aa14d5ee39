package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recipe struct {
	BaseModel
	Title        string     `gorm:"size:255;not null;index" json:"title"`
	Description  *string    `json:"description,omitempty"`
	PrepTime     *string    `gorm:"size:64" json:"prep_time,omitempty"`
	CookTime     *string    `gorm:"size:64" json:"cook_time,omitempty"`
	Servings     *string    `gorm:"size:64" json:"servings,omitempty"`
	Difficulty   *string    `gorm:"size:32" json:"difficulty,omitempty"`
	Equipment    *string    `json:"equipment,omitempty"`
	AuthorNotes  *string    `json:"author_notes,omitempty"`
	CoverImageID *uuid.UUID `gorm:"type:uuid" json:"cover_image_id,omitempty"`
	// Version is bumped on every update and guards concurrent writers.
	Version int `gorm:"not null;default:1" json:"version"`

	CoverImage   *FileRecord         `gorm:"foreignKey:CoverImageID" json:"cover_image,omitempty"`
	Steps        []RecipeStep        `gorm:"foreignKey:RecipeID" json:"steps"`
	Ingredients  []RecipeIngredient  `gorm:"foreignKey:RecipeID" json:"ingredients"`
	Tags         []Tag               `gorm:"many2many:recipe_tags;" json:"tags"`
	Categories   []Category          `gorm:"many2many:recipe_categories;" json:"categories"`
	GalleryLinks []RecipeGalleryLink `gorm:"foreignKey:RecipeID" json:"gallery"`
}

// FileIDs returns every file referenced by the recipe: cover, gallery and step images.
func (r *Recipe) FileIDs() []uuid.UUID {
	var ids []uuid.UUID
	if r.CoverImageID != nil {
		ids = append(ids, *r.CoverImageID)
	}
	for _, g := range r.GalleryLinks {
		ids = append(ids, g.FileID)
	}
	for _, s := range r.Steps {
		for _, img := range s.Images {
			ids = append(ids, img.FileID)
		}
	}
	return ids
}

type RecipeStep struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID    uuid.UUID `gorm:"type:uuid;not null;index" json:"recipe_id"`
	StepNumber  int       `gorm:"not null" json:"step_number"`
	Instruction string    `gorm:"not null" json:"instruction"`
	Duration    *string   `gorm:"size:64" json:"duration,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Images []RecipeStepImage `gorm:"foreignKey:StepID" json:"images"`
}

func (s *RecipeStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type RecipeStepImage struct {
	StepID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"step_id"`
	FileID       uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"file_id"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`

	File *FileRecord `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

func (RecipeStepImage) TableName() string {
	return "recipe_step_image_links"
}

type RecipeGalleryLink struct {
	RecipeID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"recipe_id"`
	FileID       uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"file_id"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`

	File *FileRecord `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

func (RecipeGalleryLink) TableName() string {
	return "recipe_gallery_links"
}

// RecipeIngredient is the recipe-ingredient link carrying quantity and unit.
type RecipeIngredient struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipe_id"`
	IngredientID uuid.UUID  `gorm:"type:uuid;not null;index" json:"ingredient_id"`
	UnitID       *uuid.UUID `gorm:"type:uuid;index" json:"unit_id,omitempty"`
	Quantity     *float64   `json:"quantity,omitempty"`
	Group        *string    `gorm:"column:group_name;size:64" json:"group,omitempty"`
	Note         *string    `json:"note,omitempty"`
	DisplayOrder int        `gorm:"not null" json:"display_order"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	Unit       *Unit       `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (ri *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if ri.ID == uuid.Nil {
		ri.ID = uuid.New()
	}
	return nil
}

// RecipeTag links recipes and tags.
type RecipeTag struct {
	RecipeID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TagID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (RecipeTag) TableName() string {
	return "recipe_tags"
}

// RecipeCategory links recipes and categories.
type RecipeCategory struct {
	RecipeID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (RecipeCategory) TableName() string {
	return "recipe_categories"
}
