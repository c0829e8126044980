// Package server drives each chat connection from upgrade through
// authentication and activation to teardown.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/auth"
	"github.com/Tyrowin/chatroom/internal/event"
	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/metrics"
	"github.com/Tyrowin/chatroom/internal/router"
)

const authTimeout = 5 * time.Second

// Lifecycle owns every connection's pumps and moves each one through
// Connecting, Authenticated, Active and Closed.
type Lifecycle struct {
	registry    *hub.Registry
	broadcaster *hub.Broadcaster
	router      *router.Router
	auth        auth.Authenticator
	opts        ClientOptions
	log         *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closing bool

	// presenceMu orders user_joined and user_left announcements with the
	// registry changes they describe.
	presenceMu sync.Mutex
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(
	registry *hub.Registry,
	broadcaster *hub.Broadcaster,
	r *router.Router,
	authenticator auth.Authenticator,
	opts ClientOptions,
	log *zap.Logger,
) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifecycle{
		registry:    registry,
		broadcaster: broadcaster,
		router:      r,
		auth:        authenticator,
		opts:        opts,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Accept authenticates an upgraded connection and, on success, activates it
// and starts its pumps. A rejected connection is closed with a policy
// violation close frame and never registered.
func (l *Lifecycle) Accept(conn *websocket.Conn, token, addr string) {
	if l.ctx.Err() != nil {
		l.reject(conn, addr, websocket.CloseGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithTimeout(l.ctx, authTimeout)
	identity, err := l.auth.Verify(ctx, token)
	cancel()
	if err != nil {
		reason := "invalid"
		if errors.Is(err, auth.ErrTokenRevoked) {
			reason = "revoked"
		}
		metrics.AuthFailures.WithLabelValues(reason).Inc()
		l.log.Warn("authentication failed", zap.String("remote_addr", addr), zap.Error(err))
		l.reject(conn, addr, websocket.ClosePolicyViolation, "authentication failed")
		return
	}
	metrics.AuthSuccess.Inc()

	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		l.reject(conn, addr, websocket.CloseGoingAway, "server shutting down")
		return
	}
	l.wg.Add(2)
	l.mu.Unlock()

	client := newClient(conn, identity, addr, l)
	l.activate(client)

	go func() {
		defer l.wg.Done()
		client.writePump()
	}()
	go func() {
		defer l.wg.Done()
		client.readPump(l.ctx)
	}()
}

// activate registers the client, announces it to everyone else, and sends
// the client the current queue. A client registered after Shutdown listed
// the sessions is closed here instead.
func (l *Lifecycle) activate(c *Client) {
	uid := c.identity.UserID

	l.presenceMu.Lock()
	l.registry.Register(uid, c.identity.Username, c)
	l.broadcaster.BroadcastExcept(
		event.UserJoined(uid, c.identity.Username, l.registry.OnlineUsers()), uid)
	l.presenceMu.Unlock()

	if l.ctx.Err() != nil {
		if err := c.Close(); err != nil {
			c.log.Debug("error closing client during shutdown", zap.Error(err))
		}
		return
	}

	err := l.router.SyncQueue(l.ctx, func(snapshot event.QueueUpdate) error {
		_, err := l.broadcaster.SendToOne(uid, snapshot)
		return err
	})
	if err != nil {
		c.log.Warn("failed to send initial queue", zap.Error(err))
	}
}

func (l *Lifecycle) reject(conn *websocket.Conn, addr string, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(l.opts.WriteWait)); err != nil {
		l.log.Debug("error writing close frame", zap.String("remote_addr", addr), zap.Error(err))
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		l.log.Warn("error closing rejected connection", zap.String("remote_addr", addr), zap.Error(err))
	}
}

// teardown runs once per client. It removes the client's own session, closes
// its handle, and announces user_left unless a newer connection now holds
// the same identity.
func (l *Lifecycle) teardown(c *Client) {
	c.teardownOnce.Do(func() {
		uid := c.identity.UserID

		l.presenceMu.Lock()
		defer l.presenceMu.Unlock()

		_, heldByOther, online := l.registry.Leave(uid, c)
		if err := c.Close(); err != nil {
			c.log.Debug("error closing send queue", zap.Error(err))
		}

		if heldByOther {
			c.log.Info("superseded connection closed")
			return
		}
		if l.ctx.Err() != nil {
			return
		}
		l.broadcaster.Broadcast(event.UserLeft(uid, c.identity.Username, online))
	})
}

// Shutdown closes every active session and waits for all pump goroutines to
// finish or the timeout to expire.
func (l *Lifecycle) Shutdown(timeout time.Duration) error {
	l.log.Info("initiating connection shutdown")
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.cancel()

	sessions := l.registry.Sessions()
	for _, sess := range sessions {
		if err := sess.Conn.Close(); err != nil {
			l.log.Debug("error closing session", zap.Int64("user_id", sess.UserID), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.log.Info("all connections closed", zap.Int("closed", len(sessions)))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("connection shutdown timed out after %s", timeout)
	}
}
