package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/auth"
	"github.com/Tyrowin/chatroom/internal/config"
	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/router"
	"github.com/Tyrowin/chatroom/internal/server"
	"github.com/Tyrowin/chatroom/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatroom: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envLoadErr := godotenv.Load()

	configPath := flag.String("config", os.Getenv("CHATROOM_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := server.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if envLoadErr != nil {
		log.Debug("no .env file loaded", zap.Error(envLoadErr))
	}

	ctx := context.Background()

	var redisClient *redis.Client
	if strings.EqualFold(cfg.Store.Backend, "redis") || cfg.Auth.RevocationCheck {
		redisClient, err = store.NewRedisClient(ctx, store.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Retries:  cfg.Redis.ConnectRetries,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	var (
		messages store.MessageStore
		queue    store.QueueStore
	)
	if strings.EqualFold(cfg.Store.Backend, "redis") {
		messages = store.NewRedisMessageStore(redisClient, cfg.Store.KeyPrefix)
		queue = store.NewRedisQueueStore(redisClient, cfg.Store.KeyPrefix)
	} else {
		messages = store.NewMemoryMessageStore()
		queue = store.NewMemoryQueueStore()
	}
	log.Info("stores initialized", zap.String("backend", cfg.Store.Backend))

	authOpts := []auth.Option{auth.WithLogger(log)}
	if cfg.Auth.RevocationCheck {
		authOpts = append(authOpts, auth.WithRevocation(redisClient, cfg.Auth.RevocationListKey))
		log.Info("token revocation check enabled")
	}
	authenticator := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, authOpts...)

	registry := hub.NewRegistry(log)
	broadcaster := hub.NewBroadcaster(registry, log)
	eventRouter := router.New(messages, queue, broadcaster, log)
	lifecycle := server.NewLifecycle(registry, broadcaster, eventRouter, authenticator,
		server.ClientOptionsFrom(cfg.WebSocket), log)

	handlers := server.NewHandlers(lifecycle, messages, queue, cfg, log)
	httpServer := server.CreateServer(cfg, server.SetupRoutes(handlers, cfg.Metrics, log))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer, log)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	if err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout, log); err != nil {
		log.Warn("http server did not shut down cleanly", zap.Error(err))
	}
	if err := lifecycle.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.Warn("connections did not close cleanly", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}
