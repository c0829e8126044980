package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is the placeholder secret; Validate rejects it.
const DefaultJWTSecret = "default-secret"

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.idleTimeout", 60*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	// WebSocket
	v.SetDefault("websocket.allowedOrigins", []string{"http://localhost:8080"})
	v.SetDefault("websocket.maxMessageSize", 4096)
	v.SetDefault("websocket.sendBuffer", 256)
	v.SetDefault("websocket.writeWait", 10*time.Second)
	v.SetDefault("websocket.pongWait", 60*time.Second)
	v.SetDefault("websocket.pingPeriod", 54*time.Second)
	v.SetDefault("websocket.rateLimit.burst", 5)
	v.SetDefault("websocket.rateLimit.refillInterval", time.Second)

	// Auth
	v.SetDefault("auth.jwtSecret", DefaultJWTSecret)
	v.SetDefault("auth.tokenQueryParam", "token")
	v.SetDefault("auth.revocationCheck", false)
	v.SetDefault("auth.revocationListKey", "jwt:revoked")

	// Store
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.keyPrefix", "chatroom")
	v.SetDefault("store.historyLimit", 50)

	// Redis
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.connectRetries", 5)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
