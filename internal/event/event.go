// Package event defines the JSON events exchanged with chat clients. Every
// event is a single object tagged by its "type" field.
package event

import (
	"time"

	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/store"
)

// Inbound event types
const (
	TypeChatMessage     = "chat_message"
	TypeMusicMessage    = "music_message"
	TypeAddToQueue      = "add_to_queue"
	TypeRemoveFromQueue = "remove_from_queue"
)

// Outbound event types
const (
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeNewMessage  = "new_message"
	TypeQueueUpdate = "queue_update"
)

// DefaultTitle is used when a music event carries no title.
const DefaultTitle = "Unknown"

// UserPresence is sent when a user joins or leaves.
type UserPresence struct {
	Type        string           `json:"type"`
	UserID      int64            `json:"user_id"`
	Username    string           `json:"username"`
	OnlineUsers []hub.OnlineUser `json:"online_users"`
}

// UserJoined builds a user_joined event.
func UserJoined(userID int64, username string, online []hub.OnlineUser) UserPresence {
	return presence(TypeUserJoined, userID, username, online)
}

// UserLeft builds a user_left event.
func UserLeft(userID int64, username string, online []hub.OnlineUser) UserPresence {
	return presence(TypeUserLeft, userID, username, online)
}

func presence(typ string, userID int64, username string, online []hub.OnlineUser) UserPresence {
	if online == nil {
		online = []hub.OnlineUser{}
	}
	return UserPresence{
		Type:        typ,
		UserID:      userID,
		Username:    username,
		OnlineUsers: online,
	}
}

// NewMessage echoes a persisted chat message to clients.
type NewMessage struct {
	Type        string            `json:"type"`
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Username    string            `json:"username"`
	Content     string            `json:"content"`
	MessageType store.MessageType `json:"message_type"`
	MusicURL    string            `json:"music_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewMessageFrom builds a new_message event from a stored message.
func NewMessageFrom(msg store.Message) NewMessage {
	return NewMessage{
		Type:        TypeNewMessage,
		ID:          msg.ID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		Content:     msg.Content,
		MessageType: msg.Type,
		MusicURL:    msg.MusicURL,
		CreatedAt:   msg.CreatedAt,
	}
}

// QueueUpdate carries the full music queue.
type QueueUpdate struct {
	Type  string             `json:"type"`
	Queue []store.QueueEntry `json:"queue"`
}

// QueueUpdateFrom builds a queue_update event. The queue is always encoded as
// an array.
func QueueUpdateFrom(entries []store.QueueEntry) QueueUpdate {
	if entries == nil {
		entries = []store.QueueEntry{}
	}
	return QueueUpdate{Type: TypeQueueUpdate, Queue: entries}
}
