package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/pricescout/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.GET("/search", handler.Search)
		v1.GET("/retailers/:retailer", handler.RetailerSearch)
	}

	// Image proxy lives at a configurable path so generated image links can point at it
	imagePath := cfg.ImageProxy.Path
	if imagePath == "" {
		imagePath = "/api/v1/image-proxy"
	}
	router.GET(imagePath, handler.ImageProxy)

	return router
}
