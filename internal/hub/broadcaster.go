package hub

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/metrics"
)

// Broadcaster delivers events to sessions held in a Registry.
//
// Delivery is an enqueue onto each connection's outbound FIFO, so events
// issued in order by one goroutine reach every recipient in that order.
type Broadcaster struct {
	registry *Registry
	log      *zap.Logger
}

// NewBroadcaster creates a Broadcaster over registry.
func NewBroadcaster(registry *Registry, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{registry: registry, log: log}
}

// SendToOne delivers event to userID. It returns false with a nil error when
// the user is not connected; the registry is left untouched in that case. On
// failure the session is pruned and a *DeliveryError is returned.
func (b *Broadcaster) SendToOne(userID int64, event any) (bool, error) {
	sess, ok := b.registry.Lookup(userID)
	if !ok {
		return false, nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("encode event: %w", err)
	}

	if err := sess.Conn.Send(payload); err != nil {
		b.prune(sess, err)
		return false, &DeliveryError{UserID: userID, Err: err}
	}
	metrics.Deliveries.Inc()
	return true, nil
}

// Broadcast delivers event to every registered session.
func (b *Broadcaster) Broadcast(event any) {
	b.broadcast(event, 0, false)
}

// BroadcastExcept delivers event to every registered session except userID.
func (b *Broadcaster) BroadcastExcept(event any, userID int64) {
	b.broadcast(event, userID, true)
}

func (b *Broadcaster) broadcast(event any, exclude int64, hasExclude bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("encoding broadcast event", zap.Error(err))
		return
	}

	sessions := b.registry.Sessions()
	metrics.Broadcasts.Inc()
	b.log.Debug("broadcasting event", zap.Int("sessions", len(sessions)), zap.Int("bytes", len(payload)))

	failed := b.deliver(sessions, payload, exclude, hasExclude)
	for _, f := range failed {
		b.prune(f.session, f.err)
	}
}

type failedDelivery struct {
	session *Session
	err     error
}

// deliver enqueues payload on each session and collects the ones that fail.
// One failure never stops delivery to the rest.
func (b *Broadcaster) deliver(sessions []*Session, payload []byte, exclude int64, hasExclude bool) []failedDelivery {
	var failed []failedDelivery
	for _, sess := range sessions {
		if hasExclude && sess.UserID == exclude {
			continue
		}
		if err := sess.Conn.Send(payload); err != nil {
			failed = append(failed, failedDelivery{session: sess, err: err})
			continue
		}
		metrics.Deliveries.Inc()
	}
	return failed
}

// prune removes a session whose delivery failed, comparing the handle so a
// user who reconnected in the meantime keeps the new session.
func (b *Broadcaster) prune(sess *Session, cause error) {
	if !b.registry.Remove(sess.UserID, sess.Conn) {
		return
	}
	metrics.DeliveryFailures.Inc()
	b.log.Warn("pruning session after failed delivery",
		zap.Int64("user_id", sess.UserID),
		zap.String("conn_id", sess.Conn.ID()),
		zap.Error(cause))
	if err := sess.Conn.Close(); err != nil {
		b.log.Debug("closing pruned connection", zap.Int64("user_id", sess.UserID), zap.Error(err))
	}
}
