package middleware

import (
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RequirePermission lets the request through when the user holds any of
// codes. Superusers always pass. It must run after BearerAuth.
func RequirePermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uc := CurrentUser(c)
		if uc == nil || uc.User == nil {
			abort(c, models.ErrNotAuthenticated)
			return
		}
		if uc.IsSuperuser() {
			c.Next()
			return
		}
		for _, code := range codes {
			if uc.Has(code) {
				c.Next()
				return
			}
		}
		abort(c, models.NewPermissionDeniedError("missing permission: %s", strings.Join(codes, " or ")).
			WithDetails(map[string]any{"required": codes}))
	}
}

// RequireSuperuser restricts a route to superusers.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uc := CurrentUser(c)
		if uc == nil || uc.User == nil {
			abort(c, models.ErrNotAuthenticated)
			return
		}
		if !uc.IsSuperuser() {
			abort(c, models.NewPermissionDeniedError("superuser access required"))
			return
		}
		c.Next()
	}
}
