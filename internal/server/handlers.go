// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the read-only message history and queue endpoints.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/config"
	"github.com/Tyrowin/chatroom/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Handlers groups the HTTP handlers of the chat server.
type Handlers struct {
	lifecycle    *Lifecycle
	messages     store.MessageStore
	queue        store.QueueStore
	upgrader     websocket.Upgrader
	tokenParam   string
	historyLimit int
	log          *zap.Logger
}

// NewHandlers creates the HTTP handlers backed by lifecycle and the stores.
func NewHandlers(
	lifecycle *Lifecycle,
	messages store.MessageStore,
	queue store.QueueStore,
	cfg *config.Config,
	log *zap.Logger,
) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	origins := newOriginPolicy(cfg.WebSocket.AllowedOrigins, log)
	historyLimit := cfg.Store.HistoryLimit
	if historyLimit < 1 || historyLimit > maxHistoryLimit {
		historyLimit = defaultHistoryLimit
	}
	return &Handlers{
		lifecycle: lifecycle,
		messages:  messages,
		queue:     queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		tokenParam:   cfg.Auth.TokenQueryParam,
		historyLimit: historyLimit,
		log:          log,
	}
}

// ClientOptionsFrom maps the websocket configuration onto per-connection
// transport settings.
func ClientOptionsFrom(cfg config.WebSocketConfig) ClientOptions {
	return ClientOptions{
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     cfg.SendBuffer,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		PingPeriod:     cfg.PingPeriod,
		RateBurst:      cfg.RateLimit.Burst,
		RateInterval:   cfg.RateLimit.RefillInterval,
	}
}

// WebSocket upgrades the request and hands the connection to the lifecycle,
// which authenticates it with the token query parameter.
func (h *Handlers) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		h.log.Warn("websocket upgrade failed", zap.String("remote_addr", c.Request.RemoteAddr), zap.Error(err))
		return
	}

	h.lifecycle.Accept(conn, c.Query(h.tokenParam), c.Request.RemoteAddr)
}

// Health reports that the server is running.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Messages returns the most recent chat messages as a bare JSON array,
// oldest first.
func (h *Handlers) Messages(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 200"})
			return
		}
		limit = parsed
	}

	msgs, err := h.messages.Recent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, store.ErrInvalidLimit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to load messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// Queue returns the current music queue in play order.
func (h *Handlers) Queue(c *gin.Context) {
	entries, err := h.queue.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to load queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load queue"})
		return
	}
	if entries == nil {
		entries = []store.QueueEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"queue": entries})
}
