// Package hub tracks which users are connected and fans events out to them.
//
// The Registry maps a user id to its live Session; the Broadcaster delivers
// encoded events to one or all sessions and prunes the ones that fail.
package hub

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/metrics"
)

// Conn is the write side of a single client connection. Send must not block:
// it enqueues onto the connection's outbound FIFO or fails.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Session binds an authenticated user to its connection handle.
type Session struct {
	UserID   int64
	Username string
	Conn     Conn
	seq      uint64
}

// OnlineUser is the public view of a session included in join/leave events.
type OnlineUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Registry is the process-wide table of live sessions keyed by user id.
// All methods are safe for concurrent use. The lock is never held while
// calling into a Conn.
type Registry struct {
	sessions map[int64]*Session
	nextSeq  uint64
	mutex    sync.RWMutex
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[int64]*Session),
		log:      log,
	}
}

// Register inserts the session for userID, replacing any existing one. A
// replaced connection is closed after the lock is released so that a user
// never holds two live sockets. It reports whether a prior connection was
// superseded.
func (r *Registry) Register(userID int64, username string, conn Conn) (*Session, bool) {
	r.mutex.Lock()
	prev, exists := r.sessions[userID]
	r.nextSeq++
	sess := &Session{
		UserID:   userID,
		Username: username,
		Conn:     conn,
		seq:      r.nextSeq,
	}
	r.sessions[userID] = sess
	count := len(r.sessions)
	r.mutex.Unlock()

	metrics.TotalSessions.Inc()
	metrics.ActiveSessions.Set(float64(count))

	superseded := exists && prev.Conn != conn
	if superseded {
		metrics.SupersededSessions.Inc()
		r.log.Info("session superseded",
			zap.Int64("user_id", userID),
			zap.String("old_conn_id", prev.Conn.ID()),
			zap.String("conn_id", conn.ID()))
		if err := prev.Conn.Close(); err != nil {
			r.log.Debug("closing superseded connection", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	r.log.Info("session registered",
		zap.Int64("user_id", userID),
		zap.String("username", username),
		zap.Int("sessions", count))
	return sess, superseded
}

// Unregister removes whatever session is registered for userID. Removing an
// absent user is a no-op.
func (r *Registry) Unregister(userID int64) {
	r.mutex.Lock()
	_, exists := r.sessions[userID]
	delete(r.sessions, userID)
	count := len(r.sessions)
	r.mutex.Unlock()

	if exists {
		metrics.ActiveSessions.Set(float64(count))
		r.log.Info("session unregistered", zap.Int64("user_id", userID), zap.Int("sessions", count))
	}
}

// Remove deletes the session for userID only if it is still bound to conn.
// A session re-registered on a newer connection is left in place. It reports
// whether a session was removed.
func (r *Registry) Remove(userID int64, conn Conn) bool {
	r.mutex.Lock()
	sess, exists := r.sessions[userID]
	if !exists || sess.Conn != conn {
		r.mutex.Unlock()
		return false
	}
	delete(r.sessions, userID)
	count := len(r.sessions)
	r.mutex.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	r.log.Info("session removed",
		zap.Int64("user_id", userID),
		zap.String("conn_id", conn.ID()),
		zap.Int("sessions", count))
	return true
}

// Leave removes the session for userID if it is still bound to conn and,
// under the same lock, reports whether a different connection holds userID
// and which users remain online.
func (r *Registry) Leave(userID int64, conn Conn) (removed, heldByOther bool, online []OnlineUser) {
	r.mutex.Lock()
	sess, exists := r.sessions[userID]
	switch {
	case exists && sess.Conn == conn:
		delete(r.sessions, userID)
		removed = true
	case exists:
		heldByOther = true
	}
	online = r.onlineLocked()
	count := len(r.sessions)
	r.mutex.Unlock()

	if removed {
		metrics.ActiveSessions.Set(float64(count))
		r.log.Info("session removed",
			zap.Int64("user_id", userID),
			zap.String("conn_id", conn.ID()),
			zap.Int("sessions", count))
	}
	return removed, heldByOther, online
}

// Lookup returns the session registered for userID.
func (r *Registry) Lookup(userID int64) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sess, ok := r.sessions[userID]
	return sess, ok
}

// Sessions returns a point-in-time copy of the registered sessions in join
// order.
func (r *Registry) Sessions() []*Session {
	r.mutex.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mutex.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })
	return sessions
}

// OnlineUsers returns the users currently registered, in join order.
func (r *Registry) OnlineUsers() []OnlineUser {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []OnlineUser {
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })

	users := make([]OnlineUser, 0, len(sessions))
	for _, sess := range sessions {
		users = append(users, OnlineUser{UserID: sess.UserID, Username: sess.Username})
	}
	return users
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}
