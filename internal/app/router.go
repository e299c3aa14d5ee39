package app

import (
	"net/http"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/controllers"
	"github.com/franciscosanchezn/gin-recipe-api/internal/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// lifecycle are the handlers shared by resources with a recycle bin.
type lifecycle struct {
	list, get, create, update, remove     gin.HandlerFunc
	batchDelete, restore, permanentDelete gin.HandlerFunc
	merge                                 gin.HandlerFunc
}

// resourceRoutes mounts the standard routes of resource on g. Writes are
// guarded by any of the listed codes; services still check ownership.
func resourceRoutes(g *gin.RouterGroup, resource string, h lifecycle, update, remove []string) {
	read := middleware.RequirePermission(resource + ":read")
	g.GET("", read, h.list)
	g.POST("", middleware.RequirePermission(resource+":create"), h.create)
	g.GET("/:id", read, h.get)
	g.PUT("/:id", middleware.RequirePermission(update...), h.update)
	g.DELETE("/:id", middleware.RequirePermission(remove...), h.remove)
	g.DELETE("/batch", middleware.RequirePermission(remove...), h.batchDelete)
	g.POST("/restore", middleware.RequirePermission(remove...), h.restore)
	g.DELETE("/permanent-delete", middleware.RequirePermission(remove...), h.permanentDelete)
	if h.merge != nil {
		g.POST("/merge", middleware.RequirePermission(update...), h.merge)
	}
}

func codes(resource, action string) []string {
	return []string{resource + ":" + action}
}

func scoped(resource, action string) []string {
	return []string{resource + ":" + action, resource + ":" + action + ":any", resource + ":" + action + ":own"}
}

// Router builds the gin engine with every route of the API.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.ErrorHandler())

	router.GET("/health", healthCheckHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s := a.Services
	authController := controllers.NewAuthController(s.Auth)
	userController := controllers.NewUserController(s.Users)
	clientController := controllers.NewClientController(s.Clients)
	tagController := controllers.NewTagController(s.Tags)
	unitController := controllers.NewUnitController(s.Units)
	ingredientController := controllers.NewIngredientController(s.Ingredients)
	categoryController := controllers.NewCategoryController(s.Categories)
	recipeController := controllers.NewRecipeController(s.Recipes)
	roleController := controllers.NewRoleController(s.Roles)
	permissionController := controllers.NewPermissionController(s.Permissions, a.Catalogue)
	fileController := controllers.NewFileController(s.Files)
	recordController := controllers.NewFileRecordController(s.FileRecords)

	v1 := router.Group("/api/v1")
	v1.POST("/oauth/token", a.OAuth.HandleToken)

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", authController.Register)
		authGroup.POST("/login", authController.Login)
		authGroup.POST("/refresh", authController.Refresh)
	}

	protected := v1.Group("")
	protected.Use(middleware.BearerAuth(s.Auth))

	protected.POST("/auth/logout", authController.Logout)
	protected.POST("/auth/change-password", userController.ChangePassword)

	resourceRoutes(protected.Group("/tag"), "tag", lifecycle{
		list: tagController.ListTags, get: tagController.GetTag,
		create: tagController.CreateTag, update: tagController.UpdateTag, remove: tagController.DeleteTag,
		batchDelete: tagController.BatchDeleteTags, restore: tagController.RestoreTags,
		permanentDelete: tagController.PermanentDeleteTags, merge: tagController.MergeTags,
	}, codes("tag", "update"), codes("tag", "delete"))

	resourceRoutes(protected.Group("/unit"), "unit", lifecycle{
		list: unitController.ListUnits, get: unitController.GetUnit,
		create: unitController.CreateUnit, update: unitController.UpdateUnit, remove: unitController.DeleteUnit,
		batchDelete: unitController.BatchDeleteUnits, restore: unitController.RestoreUnits,
		permanentDelete: unitController.PermanentDeleteUnits, merge: unitController.MergeUnits,
	}, codes("unit", "update"), codes("unit", "delete"))

	resourceRoutes(protected.Group("/ingredient"), "ingredient", lifecycle{
		list: ingredientController.ListIngredients, get: ingredientController.GetIngredient,
		create: ingredientController.CreateIngredient, update: ingredientController.UpdateIngredient,
		remove: ingredientController.DeleteIngredient, batchDelete: ingredientController.BatchDeleteIngredients,
		restore: ingredientController.RestoreIngredients, permanentDelete: ingredientController.PermanentDeleteIngredients,
		merge: ingredientController.MergeIngredients,
	}, codes("ingredient", "update"), codes("ingredient", "delete"))

	categories := protected.Group("/category")
	categories.GET("/tree", middleware.RequirePermission("category:read"), categoryController.CategoryTree)
	resourceRoutes(categories, "category", lifecycle{
		list: categoryController.ListCategories, get: categoryController.GetCategory,
		create: categoryController.CreateCategory, update: categoryController.UpdateCategory,
		remove: categoryController.DeleteCategory, batchDelete: categoryController.BatchDeleteCategories,
		restore: categoryController.RestoreCategories, permanentDelete: categoryController.PermanentDeleteCategories,
		merge: categoryController.MergeCategories,
	}, codes("category", "update"), codes("category", "delete"))

	resourceRoutes(protected.Group("/recipe"), "recipe", lifecycle{
		list: recipeController.ListRecipes, get: recipeController.GetRecipe,
		create: recipeController.CreateRecipe, update: recipeController.UpdateRecipe, remove: recipeController.DeleteRecipe,
		batchDelete: recipeController.BatchDeleteRecipes, restore: recipeController.RestoreRecipes,
		permanentDelete: recipeController.PermanentDeleteRecipes,
	}, scoped("recipe", "update"), scoped("recipe", "delete"))

	roles := protected.Group("/role")
	resourceRoutes(roles, "role", lifecycle{
		list: roleController.ListRoles, get: roleController.GetRole,
		create: roleController.CreateRole, update: roleController.UpdateRole, remove: roleController.DeleteRole,
		batchDelete: roleController.BatchDeleteRoles, restore: roleController.RestoreRoles,
		permanentDelete: roleController.PermanentDeleteRoles, merge: roleController.MergeRoles,
	}, codes("role", "update"), codes("role", "delete"))
	roles.PUT("/:id/permissions", middleware.RequirePermission("role:update"), roleController.SetPermissions)
	roles.POST("/:id/permissions/:permission_id", middleware.RequirePermission("role:update"), roleController.AssignPermission)
	roles.DELETE("/:id/permissions/:permission_id", middleware.RequirePermission("role:update"), roleController.RevokePermission)

	permissions := protected.Group("/permission")
	{
		read := middleware.RequirePermission("permission:read")
		permissions.GET("", read, permissionController.ListPermissions)
		permissions.POST("", middleware.RequirePermission("permission:create"), permissionController.CreatePermission)
		permissions.POST("/sync", middleware.RequireSuperuser(), permissionController.SyncPermissions)
		permissions.GET("/:id", read, permissionController.GetPermission)
		permissions.PUT("/:id", middleware.RequirePermission("permission:update"), permissionController.UpdatePermission)
		permissions.DELETE("/:id", middleware.RequirePermission("permission:delete"), permissionController.DeletePermission)
	}

	users := protected.Group("/user")
	{
		// The current account needs no permission beyond a valid token.
		users.GET("/me", userController.Me)
		users.PUT("/me", userController.UpdateMe)
		users.POST("/me/avatar", userController.UploadAvatar)

		read := middleware.RequirePermission("user:read")
		users.GET("", read, userController.ListUsers)
		users.POST("", middleware.RequirePermission("user:create"), userController.CreateUser)
		users.GET("/:id", read, userController.GetUser)
		users.PUT("/:id", middleware.RequirePermission("user:update"), userController.UpdateUser)
		users.DELETE("/:id", middleware.RequirePermission("user:delete"), userController.DeleteUser)
		users.PUT("/:id/roles", middleware.RequirePermission("user:update"), userController.AssignRoles)
	}

	clients := protected.Group("/clients")
	{
		clients.GET("", clientController.ListClients)
		clients.POST("", clientController.CreateClient)
		clients.GET("/:id", clientController.GetClient)
		clients.DELETE("/:id", clientController.DeleteClient)
	}

	files := protected.Group("/file")
	{
		read := middleware.RequirePermission("file:read")
		create := middleware.RequirePermission("file:create")
		files.POST("/upload", create, fileController.Upload)
		files.DELETE("", middleware.RequirePermission(scoped("file", "delete")...), fileController.DeleteObject)
		files.GET("/exists", read, fileController.Exists)
		files.GET("/list", read, fileController.List)
		files.GET("/presigned-url/get", read, fileController.PresignGet)
		files.POST("/presigned-url/put", create, fileController.PresignPut)
		files.POST("/presigned-url/policy", create, fileController.PresignPolicy)
		files.POST("/presigned-url/upload", create, fileController.PresignUpload)
		files.POST("/register", create, fileController.Register)
	}

	records := protected.Group("/file-record")
	{
		read := middleware.RequirePermission("file:read")
		records.GET("", read, recordController.ListFileRecords)
		records.GET("/:id", read, recordController.GetFileRecord)
		records.PUT("/:id", middleware.RequirePermission(scoped("file", "update")...), recordController.UpdateFileRecord)
		records.DELETE("/:id", middleware.RequirePermission(scoped("file", "delete")...), recordController.DeleteFileRecord)
	}

	return router
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gin-recipe-api",
	})
}
