package middleware

import (
	"errors"
	"net/http"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorHandler renders the last error attached with c.Error as the response
// envelope, unless a handler already wrote a body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := toAppError(c.Errors.Last().Err)
		entry := log.WithFields(log.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"code":   appErr.Code,
		})
		if appErr.Kind == models.KindInternal || appErr.Kind == models.KindFile {
			entry.WithError(appErr.Err).Error(appErr.Message)
		} else {
			entry.Debug(appErr.Message)
		}
		c.JSON(appErr.HTTPStatus(), models.Fail(appErr))
	}
}

func toAppError(err error) *models.AppError {
	if appErr, ok := models.AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewAppError(models.KindNotFound, models.CodeNotFound, "record not found")
	}
	return models.NewInternalError(err)
}

// Recovery turns a panic into a SERVER envelope. The panic value is logged,
// never returned.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.Fail(models.NewInternalError(nil)))
	})
}
