package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthController serves the JSON sign-in endpoints. The RFC 6749 form
// endpoint lives in auth.OAuthService.HandleToken.
type AuthController struct {
	authService services.AuthService
}

func NewAuthController(authService services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register godoc
// @Summary Register
// @Description Create an account with the default user role
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "Account"
// @Success 201 {object} models.Response{data=models.User}
// @Failure 400 {object} models.Response
// @Failure 409 {object} models.Response
// @Router /api/v1/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	u, err := ac.authService.Register(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, u)
}

// Login godoc
// @Summary Login
// @Description Password sign-in. Repeated failures lock the account.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body services.LoginInput true "Credentials"
// @Success 200 {object} models.Response{data=services.LoginResult}
// @Failure 401 {object} models.Response
// @Router /api/v1/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var in services.LoginInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	res, err := ac.authService.Login(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Refresh godoc
// @Summary Refresh tokens
// @Description Rotates the pair; the presented refresh token stops working.
// @Tags auth
// @Accept json
// @Produce json
// @Param token body services.RefreshInput true "Refresh token"
// @Success 200 {object} models.Response{data=auth.TokenPair}
// @Failure 401 {object} models.Response
// @Router /api/v1/auth/refresh [post]
func (ac *AuthController) Refresh(c *gin.Context) {
	var in services.RefreshInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	pair, err := ac.authService.Refresh(c.Request.Context(), in.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pair)
}

// Logout godoc
// @Summary Logout
// @Description Revokes the bearer access token and, when sent, the refresh token.
// @Tags auth
// @Accept json
// @Produce json
// @Param token body services.LogoutInput false "Refresh token"
// @Success 200 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/auth/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	var in services.LogoutInput
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &in); err != nil {
			fail(c, err)
			return
		}
	}
	if err := ac.authService.Logout(c.Request.Context(), middleware.AccessToken(c), in.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}
