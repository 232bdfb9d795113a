package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shipquote/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
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
	{
		v1.GET("/partners", handler.ListPartners)

		// polling a job is not throttled, starting a quote is
		limit := RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst)
		quotes := v1.Group("/quotes")
		{
			quotes.POST("", limit, handler.CreateQuote)
			quotes.POST("/jobs", limit, handler.CreateQuoteJob)
			quotes.GET("/jobs/:id", handler.GetQuoteJob)
		}

		cache := v1.Group("/cache")
		{
			cache.DELETE("", handler.ClearCache)
			cache.GET("/stats", handler.CacheStats)
		}
	}

	return router
}
