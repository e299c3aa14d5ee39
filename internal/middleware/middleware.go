package middleware

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/gin-gonic/gin"
)

// UserContextKey is the gin context key holding the *models.UserContext of
// an authenticated request.
const UserContextKey = "userContext"

// AccessTokenKey holds the raw bearer token of the request.
const AccessTokenKey = "accessToken"

// Authenticator resolves the principal behind a bearer access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.UserContext, error)
}

// BearerAuth validates the RFC 6750 bearer token and stores the principal in
// the context. Requests without a valid token are rejected with 401.
func BearerAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abort(c, err)
			return
		}
		uc, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(UserContextKey, uc)
		c.Set(AccessTokenKey, token)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", models.NewUnauthorizedError(models.CodeAuth,
			"missing Authorization header, a valid Bearer token is required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", models.NewUnauthorizedError(models.CodeAuth,
			"Authorization header must use the Bearer scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", models.NewUnauthorizedError(models.CodeTokenInvalid, "bearer token is empty")
	}
	return token, nil
}

// CurrentUser returns the principal set by BearerAuth, or nil.
func CurrentUser(c *gin.Context) *models.UserContext {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return nil
	}
	uc, _ := v.(*models.UserContext)
	return uc
}

// AccessToken returns the bearer token BearerAuth accepted.
func AccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}

// abort records err for ErrorHandler and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
