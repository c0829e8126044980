package store

import (
	"context"
	"sync"
)

// MemoryMessageStore keeps messages in process memory.
type MemoryMessageStore struct {
	messages []Message
	nextID   int64
	mutex    sync.RWMutex
}

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

// Append stores a message and assigns it the next id.
func (s *MemoryMessageStore) Append(_ context.Context, author Author, content string, typ MessageType, musicURL string) (Message, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	msg := Message{
		ID:        s.nextID,
		UserID:    author.UserID,
		Username:  author.Username,
		Content:   content,
		Type:      typ,
		MusicURL:  musicURL,
		CreatedAt: now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Recent returns the newest limit messages, oldest first.
func (s *MemoryMessageStore) Recent(_ context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	start := len(s.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out, nil
}

// MemoryQueueStore keeps the music queue in process memory.
type MemoryQueueStore struct {
	entries []QueueEntry
	nextID  int64
	mutex   sync.RWMutex
}

// NewMemoryQueueStore creates an empty in-memory queue.
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{}
}

// Append adds a track at the end of the queue.
func (s *MemoryQueueStore) Append(_ context.Context, author Author, musicURL, title string) (QueueEntry, error) {
	if musicURL == "" {
		return QueueEntry{}, ErrEmptyURL
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	entry := QueueEntry{
		ID:       s.nextID,
		UserID:   author.UserID,
		Username: author.Username,
		MusicURL: musicURL,
		Title:    title,
		AddedAt:  now(),
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// RemoveByID deletes the entry with id if present.
func (s *MemoryQueueStore) RemoveByID(_ context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// List returns a copy of the queue in arrival order.
func (s *MemoryQueueStore) List(_ context.Context) ([]QueueEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]QueueEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
