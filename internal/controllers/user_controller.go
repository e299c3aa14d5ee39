package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserRolesRequest replaces the roles of a user.
type UserRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids"`
}

// UserController handles HTTP requests related to users and the current account
type UserController struct {
	service services.UserService
}

func NewUserController(service services.UserService) *UserController {
	return &UserController{service: service}
}

// Me godoc
// @Summary Current user
// @Description Returns the signed-in user with roles.
// @Tags user
// @Produce json
// @Success 200 {object} models.Response{data=models.User}
// @Failure 401 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/user/me [get]
func (uc *UserController) Me(c *gin.Context) {
	u, err := uc.service.Me(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// UpdateMe godoc
// @Summary Update own profile
// @Description Only email, phone and full name; account flags are ignored here.
// @Tags user
// @Accept json
// @Produce json
// @Param user body services.UserUpdateInput true "Profile"
// @Success 200 {object} models.Response{data=models.User}
// @Security BearerAuth
// @Router /api/v1/user/me [put]
func (uc *UserController) UpdateMe(c *gin.Context) {
	var in services.UserUpdateInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	in.IsActive, in.IsLocked, in.IsSuperuser = nil, nil, nil

	current := user(c)
	u, err := uc.service.UpdateUser(c.Request.Context(), current, current.UserID(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// ChangePassword godoc
// @Summary Change own password
// @Tags user
// @Accept json
// @Produce json
// @Param password body services.ChangePasswordInput true "Old and new password"
// @Success 200 {object} models.Response
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/auth/change-password [post]
func (uc *UserController) ChangePassword(c *gin.Context) {
	var in services.ChangePasswordInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	if err := uc.service.ChangePassword(c.Request.Context(), user(c), in); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// UploadAvatar godoc
// @Summary Replace own avatar
// @Description Multipart upload to the avatar storage profile. The previous avatar object is removed.
// @Tags user
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} models.Response{data=models.User}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/user/me/avatar [post]
func (uc *UserController) UploadAvatar(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, models.NewValidationError("multipart field %q is required", "file"))
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, models.NewFileError("read upload", err))
		return
	}
	defer f.Close()

	u, err := uc.service.UpdateAvatar(c.Request.Context(), user(c), services.AvatarInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// ListUsers godoc
// @Summary List users
// @Tags user
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(20)
// @Param order_by query string false "Comma separated fields, prefix with - for descending"
// @Param view_mode query string false "active, deleted or all" default(active)
// @Success 200 {object} models.Response{data=repository.Page[models.User]}
// @Security BearerAuth
// @Router /api/v1/user [get]
func (uc *UserController) ListUsers(c *gin.Context) {
	q, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := uc.service.ListUsers(c.Request.Context(), user(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// GetUser godoc
// @Summary Get a user
// @Tags user
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.Response{data=models.User}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/user/{id} [get]
func (uc *UserController) GetUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	u, err := uc.service.GetUser(c.Request.Context(), user(c), id, viewMode(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// CreateUser godoc
// @Summary Create a user
// @Tags user
// @Accept json
// @Produce json
// @Param user body services.UserCreateInput true "User"
// @Success 201 {object} models.Response{data=models.User}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/user [post]
func (uc *UserController) CreateUser(c *gin.Context) {
	var in services.UserCreateInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	u, err := uc.service.CreateUser(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, u)
}

// UpdateUser godoc
// @Summary Update a user
// @Tags user
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param user body services.UserUpdateInput true "User"
// @Success 200 {object} models.Response{data=models.User}
// @Security BearerAuth
// @Router /api/v1/user/{id} [put]
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var in services.UserUpdateInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	u, err := uc.service.UpdateUser(c.Request.Context(), user(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// DeleteUser godoc
// @Summary Soft-delete a user
// @Tags user
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.Response
// @Failure 422 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/user/{id} [delete]
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := uc.service.DeleteUser(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// AssignRoles godoc
// @Summary Replace the roles of a user
// @Tags user
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param roles body UserRolesRequest true "Role IDs"
// @Success 200 {object} models.Response{data=models.User}
// @Security BearerAuth
// @Router /api/v1/user/{id}/roles [put]
func (uc *UserController) AssignRoles(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	var req UserRolesRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	u, err := uc.service.AssignRoles(c.Request.Context(), user(c), id, req.RoleIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}
