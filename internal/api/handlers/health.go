package handlers

import (
	"net/http"

	"air-server/internal/api/models"
	"air-server/internal/version"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health. store names the configured audit backend.
func Health(store string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "ok",
			Version: version.String(),
			Store:   store,
		})
	}
}
