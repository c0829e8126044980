// Package config loads the chatroom server configuration from an optional
// YAML file, CHATROOM_* environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override, e.g.
// CHATROOM_SERVER_PORT or CHATROOM_AUTH_JWTSECRET.
const EnvPrefix = "CHATROOM"

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Store     StoreConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins []string
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	RateLimit      RateLimitConfig
}

type AuthConfig struct {
	JWTSecret         string
	TokenQueryParam   string
	RevocationCheck   bool
	RevocationListKey string
}

type StoreConfig struct {
	Backend      string // memory or redis
	KeyPrefix    string
	HistoryLimit int
}

type RedisConfig struct {
	Address        string
	Password       string
	DB             int
	PoolSize       int
	ConnectRetries uint64
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration. An empty path skips the file and uses defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.WebSocket.AllowedOrigins = splitList(cfg.WebSocket.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// splitList accepts both YAML lists and a comma separated environment value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var errWeakSecret = errors.New("auth.jwtSecret must be set to a strong secret")
