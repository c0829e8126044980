package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("CHATROOM_AUTH_JWTSECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "token", cfg.Auth.TokenQueryParam)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 50, cfg.Store.HistoryLimit)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod)
	assert.Equal(t, 5, cfg.WebSocket.RateLimit.Burst)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_RejectsDefaultSecret(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, errWeakSecret)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
auth:
  jwtSecret: from-file
websocket:
  allowedOrigins:
    - http://example.com
  rateLimit:
    burst: 10
    refillInterval: 2s
store:
  backend: redis
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CHATROOM_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"http://example.com"}, cfg.WebSocket.AllowedOrigins)
	assert.Equal(t, 10, cfg.WebSocket.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.WebSocket.RateLimit.RefillInterval)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CHATROOM_AUTH_JWTSECRET", "s3cret")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 512,
				SendBuffer:     16,
				PongWait:       60 * time.Second,
				PingPeriod:     54 * time.Second,
				RateLimit:      RateLimitConfig{Burst: 5, RefillInterval: time.Second},
			},
			Auth:  AuthConfig{JWTSecret: "x", TokenQueryParam: "token"},
			Store: StoreConfig{Backend: "memory", HistoryLimit: 50},
			Redis: RedisConfig{Address: "localhost:6379"},
			Log:   LogConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "sqlite" }, wantErr: true},
		{name: "redis without address", mutate: func(c *Config) { c.Store.Backend = "redis"; c.Redis.Address = "" }, wantErr: true},
		{name: "history limit too large", mutate: func(c *Config) { c.Store.HistoryLimit = 500 }, wantErr: true},
		{name: "ping after pong wait", mutate: func(c *Config) { c.WebSocket.PingPeriod = 2 * time.Minute }, wantErr: true},
		{name: "zero send buffer", mutate: func(c *Config) { c.WebSocket.SendBuffer = 0 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "empty token param", mutate: func(c *Config) { c.Auth.TokenQueryParam = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
