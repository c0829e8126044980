package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/store"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Inbound
		wantErr error
	}{
		{
			name: "chat message",
			raw:  `{"type":"chat_message","content":"hi"}`,
			want: Inbound{Type: TypeChatMessage, Content: "hi"},
		},
		{
			name:    "chat message without content",
			raw:     `{"type":"chat_message","content":""}`,
			wantErr: ErrEmpty,
		},
		{
			name: "music message with title",
			raw:  `{"type":"music_message","music_url":"http://x/a.mp3","title":"A"}`,
			want: Inbound{Type: TypeMusicMessage, MusicURL: "http://x/a.mp3", Title: "A"},
		},
		{
			name: "music message defaults title",
			raw:  `{"type":"music_message","music_url":"http://x/a.mp3"}`,
			want: Inbound{Type: TypeMusicMessage, MusicURL: "http://x/a.mp3", Title: DefaultTitle},
		},
		{
			name: "add to queue keeps an explicit empty title",
			raw:  `{"type":"add_to_queue","music_url":"http://x/a.mp3","title":""}`,
			want: Inbound{Type: TypeAddToQueue, MusicURL: "http://x/a.mp3", Title: ""},
		},
		{
			name:    "add to queue without url",
			raw:     `{"type":"add_to_queue","title":"A"}`,
			wantErr: ErrEmpty,
		},
		{
			name: "remove from queue",
			raw:  `{"type":"remove_from_queue","queue_id":12}`,
			want: Inbound{Type: TypeRemoveFromQueue, QueueID: 12},
		},
		{
			name:    "remove from queue without id",
			raw:     `{"type":"remove_from_queue"}`,
			wantErr: ErrEmpty,
		},
		{
			name:    "remove from queue with string id",
			raw:     `{"type":"remove_from_queue","queue_id":"12"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "remove from queue with zero id",
			raw:     `{"type":"remove_from_queue","queue_id":0}`,
			wantErr: ErrEmpty,
		},
		{
			name:    "remove from queue with negative id",
			raw:     `{"type":"remove_from_queue","queue_id":-3}`,
			wantErr: ErrEmpty,
		},
		{
			name:    "type key must match exactly",
			raw:     `{"TYPE":"chat_message","content":"x"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "field keys must match exactly",
			raw:     `{"type":"chat_message","Content":"x"}`,
			wantErr: ErrEmpty,
		},
		{
			name: "null title falls back to default",
			raw:  `{"type":"add_to_queue","music_url":"http://x/a.mp3","title":null}`,
			want: Inbound{Type: TypeAddToQueue, MusicURL: "http://x/a.mp3", Title: DefaultTitle},
		},
		{
			name:    "non-string type",
			raw:     `{"type":7}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "json array",
			raw:     `[{"type":"chat_message","content":"hi"}]`,
			wantErr: ErrMalformed,
		},
		{
			name:    "unknown type",
			raw:     `{"type":"dance"}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "missing type",
			raw:     `{"content":"hi"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "not json",
			raw:     `hello`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutboundEncoding(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("new message omits empty music url", func(t *testing.T) {
		ev := NewMessageFrom(store.Message{
			ID: 4, UserID: 1, Username: "alice", Content: "hi",
			Type: store.MessageTypeText, CreatedAt: created,
		})
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type":"new_message","id":4,"user_id":1,"username":"alice",
			"content":"hi","message_type":"text","created_at":"2024-05-01T12:00:00Z"
		}`, string(data))
	})

	t.Run("music message carries url", func(t *testing.T) {
		ev := NewMessageFrom(store.Message{
			ID: 5, UserID: 1, Username: "alice", Content: "Shared music: A",
			Type: store.MessageTypeMusic, MusicURL: "http://x/a.mp3", CreatedAt: created,
		})
		data, err := json.Marshal(ev)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Equal(t, "http://x/a.mp3", m["music_url"])
		assert.Equal(t, "music", m["message_type"])
	})

	t.Run("empty queue encodes as array", func(t *testing.T) {
		data, err := json.Marshal(QueueUpdateFrom(nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"queue_update","queue":[]}`, string(data))
	})

	t.Run("presence lists online users", func(t *testing.T) {
		data, err := json.Marshal(UserLeft(1, "alice", []hub.OnlineUser{{UserID: 2, Username: "bob"}}))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type":"user_left","user_id":1,"username":"alice",
			"online_users":[{"user_id":2,"username":"bob"}]
		}`, string(data))

		data, err = json.Marshal(UserJoined(3, "carol", nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"user_joined","user_id":3,"username":"carol","online_users":[]}`, string(data))
	})
}
