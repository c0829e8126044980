package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == DefaultJWTSecret {
		return errWeakSecret
	}
	if c.Auth.TokenQueryParam == "" {
		return errors.New("auth.tokenQueryParam must be configured")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for redis store")
		}
	default:
		return fmt.Errorf("invalid store backend: %s. Must be 'memory' or 'redis'", c.Store.Backend)
	}
	if c.Auth.RevocationCheck && c.Redis.Address == "" {
		return errors.New("redis address must be specified for token revocation")
	}
	if c.Store.HistoryLimit < 1 || c.Store.HistoryLimit > 200 {
		return errors.New("store.historyLimit must be between 1 and 200")
	}

	if c.WebSocket.MaxMessageSize <= 0 {
		return errors.New("websocket.maxMessageSize must be positive")
	}
	if c.WebSocket.SendBuffer < 1 {
		return errors.New("websocket.sendBuffer must be positive")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return errors.New("ping period should be less than pong wait")
	}
	if c.WebSocket.RateLimit.Burst < 1 || c.WebSocket.RateLimit.RefillInterval <= 0 {
		return errors.New("rate limit burst and refill interval must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}
