package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/authcache"
	"github.com/alexchen1337/SpeakWell/internal/coordinator"
	"github.com/alexchen1337/SpeakWell/internal/delivery/http/middleware"
)

// RouterDeps bundles everything the HTTP layer needs.
type RouterDeps struct {
	Manager         *coordinator.Manager
	Auth            *authcache.Cache
	Logger          *zap.Logger
	RateLimitPerMin int
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.Logger)
		v1.GET("/health", healthHandler.Health)

		// Authenticated identity, served from the single-flight cache
		authHandler := NewAuthHandler(deps.Auth, deps.Logger)
		v1.GET("/me", authHandler.Me)

		// Watches (with rate limiting)
		limited := v1.Group("", middleware.RateLimiter(deps.RateLimitPerMin))
		watchHandler := NewWatchHandler(deps.Manager, deps.Logger)
		limited.GET("/watches", watchHandler.List)
		limited.POST("/watches", watchHandler.Create)
		limited.GET("/watches/:id", watchHandler.GetByID)
		limited.DELETE("/watches/:id", watchHandler.Delete)
		limited.POST("/watches/:id/retry", watchHandler.Retry)
		limited.POST("/watches/:id/gradings", watchHandler.InitiateGrading)
		limited.DELETE("/watches/:id/gradings/:gradingId", watchHandler.DeleteGrading)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.Manager, deps.Logger)
		v1.GET("/watches/:id/stream", wsHandler.Stream)
	}

	return router
}
