// Package server manages the WebSocket connection of each chat user,
// handling read/write pumps, rate limiting, and teardown.
package server

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/auth"
	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/store"
)

// ClientOptions holds the per-connection transport settings.
type ClientOptions struct {
	MaxMessageSize int64
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	RateBurst      int
	RateInterval   time.Duration
}

// Client is one authenticated WebSocket connection. It implements hub.Conn:
// Send enqueues onto a buffered channel drained by a single write pump, which
// keeps events to this client in the order they were sent.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	identity    auth.Identity
	addr        string
	opts        ClientOptions
	rateLimiter *rateLimiter
	lifecycle   *Lifecycle
	log         *zap.Logger

	mu           sync.Mutex
	closed       bool
	teardownOnce sync.Once
}

func newClient(conn *websocket.Conn, identity auth.Identity, addr string, l *Lifecycle) *Client {
	id := uuid.NewString()
	if conn != nil {
		conn.SetReadLimit(l.opts.MaxMessageSize)
	}
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, l.opts.SendBuffer),
		identity:    identity,
		addr:        addr,
		opts:        l.opts,
		rateLimiter: newRateLimiter(l.opts.RateBurst, l.opts.RateInterval),
		lifecycle:   l,
		log: l.log.With(
			zap.Int64("user_id", identity.UserID),
			zap.String("conn_id", id),
			zap.String("remote_addr", addr)),
	}
}

// ID returns the connection handle id.
func (c *Client) ID() string {
	return c.id
}

// Send enqueues data without blocking.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return hub.ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return hub.ErrSendBufferFull
	}
}

// Close stops accepting events. The write pump flushes what is queued, sends
// a close frame and closes the socket, which in turn ends the read pump.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

func (c *Client) author() store.Author {
	return store.Author{UserID: c.identity.UserID, Username: c.identity.Username}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError records why the read loop stopped.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", zap.Int64("limit", c.opts.MaxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", zap.Error(err))
	default:
		c.log.Warn("websocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding message",
			zap.Int("burst", c.opts.RateBurst),
			zap.Duration("interval", c.opts.RateInterval))
		return false
	}
	return true
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in read loop",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
		c.lifecycle.teardown(c)
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		// Errors are logged by the router and never reported to the sender.
		_ = c.lifecycle.router.Route(ctx, c.author(), raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the socket, which unblocks the read pump.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection", zap.Error(err))
	}
}

// handleMessage writes one queued event and returns false if the connection
// should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		c.log.Warn("error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close frame to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing close message", zap.Error(err))
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("error writing ping message", zap.Error(err))
		return false
	}
	return true
}
