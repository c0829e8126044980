// Package router applies inbound chat events to the stores and fans the
// results out to connected users.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/event"
	"github.com/Tyrowin/chatroom/internal/metrics"
	"github.com/Tyrowin/chatroom/internal/store"
)

// Broadcaster delivers an event to every connected user.
type Broadcaster interface {
	Broadcast(event any)
}

// Router handles the events of every active connection. Ordering per
// connection follows from each connection calling Route from a single
// goroutine.
//
// Queue mutations are serialized with the snapshot they broadcast, so the
// last queue_update every client receives matches the store.
type Router struct {
	messages    store.MessageStore
	queue       store.QueueStore
	broadcaster Broadcaster
	log         *zap.Logger

	queueMu sync.Mutex
}

// New creates a Router.
func New(messages store.MessageStore, queue store.QueueStore, broadcaster Broadcaster, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		messages:    messages,
		queue:       queue,
		broadcaster: broadcaster,
		log:         log,
	}
}

// Route decodes raw and performs its side effect. Malformed, unknown, and
// empty events are dropped without side effect. When a store call fails
// nothing is broadcast. The returned error is informational only; nothing is
// ever reported back to the sender.
func (r *Router) Route(ctx context.Context, from store.Author, raw []byte) error {
	in, err := event.Decode(raw)
	if err != nil {
		r.drop(from, err)
		return err
	}
	metrics.EventsReceived.WithLabelValues(in.Type).Inc()

	switch in.Type {
	case event.TypeChatMessage:
		err = r.postMessage(ctx, from, in.Content, store.MessageTypeText, "")
	case event.TypeMusicMessage:
		err = r.postMessage(ctx, from, "Shared music: "+in.Title, store.MessageTypeMusic, in.MusicURL)
	case event.TypeAddToQueue:
		err = r.addToQueue(ctx, from, in.MusicURL, in.Title)
	case event.TypeRemoveFromQueue:
		err = r.removeFromQueue(ctx, in.QueueID)
	}
	if err != nil {
		r.log.Error("event not applied",
			zap.Int64("user_id", from.UserID),
			zap.String("type", in.Type),
			zap.Error(err))
	}
	return err
}

// QueueSnapshot reads the current queue as a queue_update event.
func (r *Router) QueueSnapshot(ctx context.Context) (event.QueueUpdate, error) {
	entries, err := r.queue.List(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("queue_list").Inc()
		return event.QueueUpdate{}, fmt.Errorf("list queue: %w", err)
	}
	return event.QueueUpdateFrom(entries), nil
}

func (r *Router) postMessage(ctx context.Context, from store.Author, content string, typ store.MessageType, musicURL string) error {
	msg, err := r.messages.Append(ctx, from, content, typ, musicURL)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("message_append").Inc()
		return fmt.Errorf("append message: %w", err)
	}
	r.broadcaster.Broadcast(event.NewMessageFrom(msg))
	return nil
}

// SyncQueue hands the current queue to send while holding the queue lock,
// so no queue_update broadcast can be ordered between the snapshot and its
// delivery. send must not block.
func (r *Router) SyncQueue(ctx context.Context, send func(event.QueueUpdate) error) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	snapshot, err := r.QueueSnapshot(ctx)
	if err != nil {
		return err
	}
	return send(snapshot)
}

func (r *Router) addToQueue(ctx context.Context, from store.Author, musicURL, title string) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	if _, err := r.queue.Append(ctx, from, musicURL, title); err != nil {
		metrics.StoreErrors.WithLabelValues("queue_append").Inc()
		return fmt.Errorf("append to queue: %w", err)
	}
	return r.broadcastQueue(ctx)
}

func (r *Router) removeFromQueue(ctx context.Context, id int64) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	if err := r.queue.RemoveByID(ctx, id); err != nil {
		metrics.StoreErrors.WithLabelValues("queue_remove").Inc()
		return fmt.Errorf("remove from queue: %w", err)
	}
	return r.broadcastQueue(ctx)
}

// broadcastQueue must be called with queueMu held.
func (r *Router) broadcastQueue(ctx context.Context) error {
	snapshot, err := r.QueueSnapshot(ctx)
	if err != nil {
		return err
	}
	r.broadcaster.Broadcast(snapshot)
	return nil
}

func (r *Router) drop(from store.Author, err error) {
	reason := "malformed"
	switch {
	case errors.Is(err, event.ErrUnknownType):
		reason = "unknown_type"
	case errors.Is(err, event.ErrEmpty):
		reason = "empty"
	}
	metrics.EventsDropped.WithLabelValues(reason).Inc()
	r.log.Debug("dropping inbound event",
		zap.Int64("user_id", from.UserID),
		zap.String("reason", reason),
		zap.Error(err))
}
