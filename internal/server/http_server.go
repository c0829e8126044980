// Package server constructs and starts the chatroom HTTP service.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/config"
)

// CreateServer creates an HTTP server for handler using the configured
// listen address and timeouts.
func CreateServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// StartServer starts the HTTP server and blocks until it stops. A server
// stopped by ShutdownServer returns nil.
func StartServer(server *http.Server, log *zap.Logger) error {
	log.Info("server listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log *zap.Logger) error {
	log.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
