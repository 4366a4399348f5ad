package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"air-server/internal/api/models"

	"github.com/gin-gonic/gin"
)

// ErrorHandler recovers from panics, logs them and answers 500.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", fmt.Sprint(recovered),
		)
		message := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			message = s
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewError(models.CodeInternal, message))
	})
}
