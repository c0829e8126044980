package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisMessageStore keeps messages in a Redis list, oldest at the head.
type RedisMessageStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisMessageStore creates a message store using keys under prefix.
func NewRedisMessageStore(client redis.Cmdable, prefix string) *RedisMessageStore {
	return &RedisMessageStore{client: client, prefix: prefix}
}

func (s *RedisMessageStore) seqKey() string  { return s.prefix + ":messages:seq" }
func (s *RedisMessageStore) listKey() string { return s.prefix + ":messages" }

// Append assigns the next id with INCR and pushes the message.
func (s *RedisMessageStore) Append(ctx context.Context, author Author, content string, typ MessageType, musicURL string) (Message, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return Message{}, fmt.Errorf("allocate message id: %w", err)
	}

	msg := Message{
		ID:        id,
		UserID:    author.UserID,
		Username:  author.Username,
		Content:   content,
		Type:      typ,
		MusicURL:  musicURL,
		CreatedAt: now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.client.RPush(ctx, s.listKey(), data).Err(); err != nil {
		return Message{}, fmt.Errorf("push message: %w", err)
	}
	return msg, nil
}

// Recent returns the last limit messages, oldest first.
func (s *RedisMessageStore) Recent(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	raw, err := s.client.LRange(ctx, s.listKey(), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// RedisQueueStore keeps queue entries in a hash and their order in a sorted
// set scored by id, which INCR hands out in arrival order.
type RedisQueueStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisQueueStore creates a queue store using keys under prefix.
func NewRedisQueueStore(client redis.Cmdable, prefix string) *RedisQueueStore {
	return &RedisQueueStore{client: client, prefix: prefix}
}

func (s *RedisQueueStore) seqKey() string     { return s.prefix + ":queue:seq" }
func (s *RedisQueueStore) entriesKey() string { return s.prefix + ":queue:entries" }
func (s *RedisQueueStore) orderKey() string   { return s.prefix + ":queue:order" }

// Append writes the entry and its position in one MULTI/EXEC block.
func (s *RedisQueueStore) Append(ctx context.Context, author Author, musicURL, title string) (QueueEntry, error) {
	if musicURL == "" {
		return QueueEntry{}, ErrEmptyURL
	}

	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return QueueEntry{}, fmt.Errorf("allocate queue id: %w", err)
	}

	entry := QueueEntry{
		ID:       id,
		UserID:   author.UserID,
		Username: author.Username,
		MusicURL: musicURL,
		Title:    title,
		AddedAt:  now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return QueueEntry{}, fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	field := strconv.FormatInt(id, 10)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.entriesKey(), field, data)
		pipe.ZAdd(ctx, s.orderKey(), &redis.Z{Score: float64(id), Member: field})
		return nil
	})
	if err != nil {
		return QueueEntry{}, fmt.Errorf("append queue entry: %w", err)
	}
	return entry, nil
}

// RemoveByID deletes the entry and its position. Absent ids are ignored.
func (s *RedisQueueStore) RemoveByID(ctx context.Context, id int64) error {
	field := strconv.FormatInt(id, 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.orderKey(), field)
		pipe.HDel(ctx, s.entriesKey(), field)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove queue entry %d: %w", id, err)
	}
	return nil
}

// List returns the queue ordered by arrival.
func (s *RedisQueueStore) List(ctx context.Context) ([]QueueEntry, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue order: %w", err)
	}
	entries := make([]QueueEntry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	values, err := s.client.HMGet(ctx, s.entriesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue entries: %w", err)
	}
	for _, v := range values {
		// A concurrent remove can leave an id without its entry.
		str, ok := v.(string)
		if !ok {
			continue
		}
		var entry QueueEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
