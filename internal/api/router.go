package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
)

// userIDHeader carries the caller identity set by the gateway
const userIDHeader = "X-User-ID"

// userIDKey is the gin context key for the authenticated user
const userIDKey = "user_id"

// HealthFunc reports whether the backing store is reachable
type HealthFunc func(ctx context.Context) error

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, health HealthFunc, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	contentHandler := NewContentHandler(services, log)
	rankingHandler := NewRankingHandler(services, log)
	adminHandler := NewAdminHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(health))

	// API v1
	v1 := router.Group("/v1")
	{
		v1.GET("/leaderboard", rankingHandler.GetLeaderboard)
		v1.GET("/scoreboard", rankingHandler.GetScoreboard)
		v1.GET("/contents/:content_id", contentHandler.GetContent)

		users := v1.Group("/users")
		{
			users.GET("/:user_id/balance", rankingHandler.GetBalance)
			users.GET("/:user_id/ledger", rankingHandler.GetHistory)
		}

		contents := v1.Group("/contents", identityMiddleware())
		{
			contents.POST("", contentHandler.Publish)
			contents.DELETE("/:content_id", contentHandler.Delete)
			contents.POST("/:content_id/likes", contentHandler.Like)
			contents.DELETE("/:content_id/likes", contentHandler.Unlike)
			contents.POST("/:content_id/comments", contentHandler.Comment)
			contents.DELETE("/:content_id/comments/:comment_id", contentHandler.Uncomment)
			contents.POST("/:content_id/reports", contentHandler.Report)
		}

		admin := v1.Group("/admin", identityMiddleware(), adminMiddleware(cfg))
		{
			admin.POST("/contents/:content_id/restore", adminHandler.Restore)
			admin.DELETE("/contents/:content_id", adminHandler.PermanentDelete)
			admin.GET("/moderation/queue", adminHandler.Queue)
			admin.POST("/users/:user_id/adjustments", adminHandler.Adjust)
			admin.PUT("/accounts/:user_id", adminHandler.UpsertAccount)
			admin.POST("/accounts/import", adminHandler.ImportAccounts)
			admin.POST("/reconcile", adminHandler.Reconcile)
			admin.GET("/audit", adminHandler.Audit)
			admin.GET("/ledger/export", exportHandler.StreamLedger)
		}
	}

	return router
}

// healthCheck returns the health status
func healthCheck(health HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "points-ledger-engine",
		})
	}
}

// identityMiddleware requires the gateway identity header
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": userIDHeader + " header is required"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// adminMiddleware restricts a group to the configured admin ids
func adminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.IsAdmin(c.GetString(userIDKey)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("user_id", c.GetString(userIDKey)).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
