// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stocklot/internal/domain/inventory"
	"stocklot/internal/infrastructure/http/v1/handlers"
	"stocklot/internal/infrastructure/http/v1/middleware"
	"stocklot/internal/infrastructure/storage/postgres"
	"stocklot/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator for JWT validation
	TokenValidator middleware.TokenValidator

	// InventoryService is the allocation engine
	InventoryService *inventory.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	// Health and metrics endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/healthz", healthHandler.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Auth(cfg.TokenValidator))
	{
		baseHandler := handlers.NewBaseHandler()
		inventoryHandler := handlers.NewInventoryHandler(baseHandler, cfg.InventoryService)

		inv := apiV1.Group("/inventory")
		{
			inv.POST("/stock-in", inventoryHandler.StockIn)
			inv.POST("/stock-out", inventoryHandler.StockOut)
			inv.GET("/availability", inventoryHandler.Availability)
			inv.GET("/locations", inventoryHandler.Locations)
			inv.GET("/low-stock", inventoryHandler.LowStock)
			inv.GET("/movements", inventoryHandler.Movements)
		}
	}

	return router
}
