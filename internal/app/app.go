// Package app builds the application container: configuration, database,
// token store, object storage, services and HTTP controllers.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-recipe-api/internal/auth"
	"github.com/franciscosanchezn/gin-recipe-api/internal/config"
	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services groups every domain service.
type Services struct {
	Tags        services.TagService
	Units       services.UnitService
	Ingredients services.IngredientService
	Categories  services.CategoryService
	Recipes     services.RecipeService
	Roles       services.RoleService
	Permissions services.PermissionService
	Users       services.UserService
	Auth        services.AuthService
	Clients     services.ClientService
	Files       services.FileService
	FileRecords services.FileRecordService
}

type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Storage    *storage.Factory
	OAuth      *auth.OAuthService
	Services   Services
	Reconciler *services.Reconciler
	Catalogue  *database.Catalogue
}

// Deps are the infrastructure handles Build wires services onto.
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Storage    *storage.Factory
	TokenStore oauth2.TokenStore
	// Purger removes expired tokens from stores without TTLs; nil for Redis.
	Purger    services.TokenPurger
	Catalogue *database.Catalogue
}

// New connects to the database, Redis (when configured) and object storage,
// migrates the schema and builds the container.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	deps := Deps{DB: db}
	switch cfg.Security.TokenStore {
	case "redis":
		client, err := auth.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		deps.Redis = client
		deps.TokenStore = auth.NewRedisTokenStore(client, "")
	default:
		store := auth.NewGormTokenStore(db)
		deps.TokenStore = store
		deps.Purger = store
	}

	deps.Catalogue, err = database.DefaultCatalogue()
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	deps.Storage = storage.NewFactory(ctx, cfg.Storage)

	a, err := Build(ctx, cfg, deps)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return a, nil
}

// Build wires repositories, services and the OAuth2 server on top of deps.
// It makes sure the first-party OAuth2 client exists.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	db := deps.DB
	oauth := auth.NewOAuthService(db, deps.TokenStore, auth.Options{
		JWTSecret:       cfg.Security.JWTSecret,
		Issuer:          cfg.Security.JWTIssuer,
		AccessTokenTTL:  cfg.Security.AccessTokenTTL,
		RefreshTokenTTL: cfg.Security.RefreshTokenTTL,
		ClientID:        cfg.Security.ClientID,
		ClientSecret:    cfg.Security.ClientSecret,
	})
	if err := oauth.EnsureClient(ctx); err != nil {
		return nil, fmt.Errorf("ensure first-party client: %w", err)
	}

	tagRepo := repository.NewTagRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	ingredientRepo := repository.NewIngredientRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	recordRepo := repository.NewFileRecordRepository(db)

	var s Services
	s.Tags = services.NewTagService(db, tagRepo)
	s.Units = services.NewUnitService(db, unitRepo)
	s.Ingredients = services.NewIngredientService(db, ingredientRepo)
	s.Categories = services.NewCategoryService(db, categoryRepo)
	s.FileRecords = services.NewFileRecordService(db, recordRepo, deps.Storage)
	s.Files = services.NewFileService(db, recordRepo, deps.Storage)
	s.Recipes = services.NewRecipeService(db, services.RecipeDeps{
		Recipes:     recipeRepo,
		Tags:        tagRepo,
		Categories:  categoryRepo,
		Units:       unitRepo,
		Ingredients: ingredientRepo,
		TagService:  s.Tags,
		Ingredient:  s.Ingredients,
		FileRecords: s.FileRecords,
		Files:       deps.Storage,
	})
	s.Roles = services.NewRoleService(db, roleRepo, permissionRepo)
	s.Permissions = services.NewPermissionService(db, permissionRepo, roleRepo)
	s.Users = services.NewUserService(db, userRepo, roleRepo, recordRepo, deps.Storage)
	s.Auth = services.NewAuthService(db, userRepo, roleRepo, s.Users, oauth, cfg.Security.MaxLoginAttempts)
	s.Clients = services.NewClientService(db)

	catalogue := deps.Catalogue
	if catalogue == nil {
		var err error
		if catalogue, err = database.DefaultCatalogue(); err != nil {
			return nil, err
		}
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Redis:    deps.Redis,
		Storage:  deps.Storage,
		OAuth:    oauth,
		Services: s,
		Reconciler: services.NewReconciler(db, recordRepo, deps.Storage, deps.Purger, services.ReconcileOptions{
			GracePeriod: cfg.Reconcile.GracePeriod,
			BatchSize:   cfg.Reconcile.BatchSize,
		}),
		Catalogue: catalogue,
	}, nil
}

// Close releases Redis and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := database.Close(a.DB); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		log.Info("Application resources released")
	}
	return errors.Join(errs...)
}
