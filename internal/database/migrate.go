package database

import (
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"gorm.io/gorm"
)

// Models lists every table owned by the application in creation order.
func Models() []any {
	return []any{
		&models.FileRecord{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
		&models.UserRole{},
		&models.Tag{},
		&models.Unit{},
		&models.Ingredient{},
		&models.Category{},
		&models.Recipe{},
		&models.RecipeStep{},
		&models.RecipeStepImage{},
		&models.RecipeGalleryLink{},
		&models.RecipeIngredient{},
		&models.RecipeTag{},
		&models.RecipeCategory{},
		&models.OAuthClient{},
		&models.OAuthToken{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	log.Info("Running database migrations")
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.WithField("tables", len(Models())).Info("Database migrations completed")
	return nil
}
