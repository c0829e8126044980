package server_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatroom/internal/config"
	"github.com/Tyrowin/chatroom/internal/server"
	"github.com/Tyrowin/chatroom/internal/store"
	"github.com/Tyrowin/chatroom/internal/testhelpers"
)

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]string
	status := testhelpers.GetJSON(t, env.url+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestHTTPMethods(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/queue", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodGet, "/ws", http.StatusBadRequest},
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.url+tt.path, http.NoBody)
			require.NoError(t, err)
			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMessagesHandler(t *testing.T) {
	env := newTestEnv(t)
	author := store.Author{UserID: 1, Username: "alice"}
	for _, content := range []string{"one", "two", "three"} {
		_, err := env.messages.Append(context.Background(), author, content, store.MessageTypeText, "")
		require.NoError(t, err)
	}

	t.Run("default limit", func(t *testing.T) {
		var body []store.Message
		status := testhelpers.GetJSON(t, env.url+"/api/messages", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body, 3)
		assert.Equal(t, "one", body[0].Content)
		assert.Equal(t, "three", body[2].Content)
	})

	t.Run("explicit limit keeps newest", func(t *testing.T) {
		var body []store.Message
		status := testhelpers.GetJSON(t, env.url+"/api/messages?limit=2", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body, 2)
		assert.Equal(t, "two", body[0].Content)
		assert.Equal(t, "three", body[1].Content)
	})

	t.Run("body is a bare array", func(t *testing.T) {
		resp, err := http.Get(env.url + "/api/messages")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(string(data)), "["), "got %s", data)
	})

	for _, limit := range []string{"0", "201", "abc", "-1"} {
		t.Run("rejects limit "+limit, func(t *testing.T) {
			var body map[string]string
			status := testhelpers.GetJSON(t, env.url+"/api/messages?limit="+limit, &body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMessagesHandlerEmptyHistory(t *testing.T) {
	env := newTestEnv(t)

	var body any
	status := testhelpers.GetJSON(t, env.url+"/api/messages", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body)
}

func TestQueueHandler(t *testing.T) {
	env := newTestEnv(t)

	var empty map[string]any
	require.Equal(t, http.StatusOK, testhelpers.GetJSON(t, env.url+"/api/queue", &empty))
	assert.Equal(t, []any{}, empty["queue"])

	_, err := env.queue.Append(context.Background(), store.Author{UserID: 1, Username: "alice"}, "https://example.com/a.mp3", "A")
	require.NoError(t, err)

	var body struct {
		Queue []store.QueueEntry `json:"queue"`
	}
	require.Equal(t, http.StatusOK, testhelpers.GetJSON(t, env.url+"/api/queue", &body))
	require.Len(t, body.Queue, 1)
	assert.Equal(t, "A", body.Queue[0].Title)
	assert.Equal(t, "alice", body.Queue[0].Username)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, 1, "alice")

	resp, err := http.Get(env.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "chat_sessions_active"))
}

func TestMetricsEndpointDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Metrics.Enabled = false })

	resp, err := http.Get(env.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketOriginCheck(t *testing.T) {
	env := newTestEnv(t)
	token := testhelpers.IssueToken(t, testSecret, 1, "alice")
	url := testhelpers.WebSocketURL(env.url, token)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{name: "configured origin", origin: testhelpers.TestOrigin, allowed: true},
		{name: "case-insensitive match", origin: "HTTP://LOCALHOST:8080", allowed: true},
		{name: "other origin", origin: "http://evil.example.com", allowed: false},
		{name: "no origin", origin: "", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testhelpers.ConnectWebSocketWithOrigin(url, tt.origin)
			if tt.allowed {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestCreateServer(t *testing.T) {
	cfg := testConfig()
	cfg.Server = config.ServerConfig{
		Port:         9090,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 4 * time.Second,
		IdleTimeout:  5 * time.Second,
	}

	srv := server.CreateServer(cfg, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, 4*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.IdleTimeout)
}
