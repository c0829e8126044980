// Package server wires HTTP handlers into a gin engine for the chatroom
// application via routing helpers.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/config"
	"github.com/Tyrowin/chatroom/internal/metrics"
)

// SetupRoutes configures and returns a gin engine with all application
// routes: health check, WebSocket endpoint, history and queue reads, and
// the metrics endpoint when enabled.
func SetupRoutes(h *Handlers, cfg config.MetricsConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", h.Health)
	router.GET("/ws", h.WebSocket)

	api := router.Group("/api")
	api.GET("/messages", h.Messages)
	api.GET("/queue", h.Queue)

	if cfg.Enabled {
		router.GET(cfg.Path, gin.WrapH(metrics.Handler()))
	}
	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()))
	}
}
