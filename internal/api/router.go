// Package api wires the HTTP routes of the pricing server.
package api

import (
	"log/slog"
	"net/http"

	"air-server/internal/api/handlers"
	"air-server/internal/api/middleware"
	"air-server/internal/api/models"
	"air-server/internal/auditlog"
	"air-server/internal/dashboard"
	"air-server/internal/pricing"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Engine         *pricing.Engine
	Store          auditlog.Store
	StoreName      string
	Air            handlers.AirOptions
	Stats          handlers.StatsOptions
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS(d.AllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.SetHTMLTemplate(dashboard.Templates())

	airHandler := handlers.NewAirHandler(d.Engine, d.Store, d.Air, logger)
	callsHandler := handlers.NewCallsHandler(d.Store, logger)
	statsHandler := handlers.NewStatsHandler(d.Store, d.Stats, logger)

	router.GET("/health", handlers.Health(d.StoreName))
	router.GET("/stats", statsHandler.Page)

	api := router.Group("/api")
	{
		api.POST("/air", airHandler.Price)
		api.GET("/stats", statsHandler.KPIs)

		api.GET("/calls", callsHandler.List)
		api.DELETE("/calls", callsHandler.DeleteAll)
		api.GET("/calls/all", callsHandler.All)
		api.GET("/calls/count", callsHandler.Count)
		api.GET("/calls/search", callsHandler.Search)
		api.GET("/calls/distinct/:field", callsHandler.Distinct)
		api.GET("/calls/:id", callsHandler.Get)
		api.PATCH("/calls/:id", callsHandler.Update)
		api.DELETE("/calls/:id", callsHandler.Delete)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewError(models.CodeNotFound, "Not found"))
	})
	return router
}
