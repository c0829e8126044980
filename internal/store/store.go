// Package store persists chat messages and the shared music queue.
//
// Two backends are provided: an in-memory store for single-process use and
// tests, and a Redis store for durability across restarts.
package store

import (
	"context"
	"errors"
	"time"
)

// MessageType distinguishes plain chat messages from shared music.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMusic MessageType = "music"
)

// Common errors
var (
	ErrInvalidLimit = errors.New("limit must be positive")
	ErrEmptyURL     = errors.New("music url is required")
)

// Author identifies the user a record is attributed to.
type Author struct {
	UserID   int64
	Username string
}

// Message is a persisted chat message.
type Message struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	Type      MessageType `json:"message_type"`
	MusicURL  string      `json:"music_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// QueueEntry is one track in the shared music queue.
type QueueEntry struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	MusicURL string    `json:"music_url"`
	Title    string    `json:"title"`
	AddedAt  time.Time `json:"added_at"`
}

// MessageStore appends and lists chat messages.
type MessageStore interface {
	// Append persists a message and returns it with its generated id and
	// timestamp.
	Append(ctx context.Context, author Author, content string, typ MessageType, musicURL string) (Message, error)
	// Recent returns up to limit of the newest messages, oldest first.
	Recent(ctx context.Context, limit int) ([]Message, error)
}

// QueueStore maintains the music queue in arrival order.
type QueueStore interface {
	// Append adds a track to the end of the queue.
	Append(ctx context.Context, author Author, musicURL, title string) (QueueEntry, error)
	// RemoveByID deletes a track. Removing an absent id is not an error.
	RemoveByID(ctx context.Context, id int64) error
	// List returns the queue ordered by the time entries were added.
	List(ctx context.Context) ([]QueueEntry, error)
}

func now() time.Time {
	return time.Now().UTC()
}
