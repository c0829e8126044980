package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatroom/internal/auth"
	"github.com/Tyrowin/chatroom/internal/hub"
	"github.com/Tyrowin/chatroom/internal/router"
	"github.com/Tyrowin/chatroom/internal/store"
)

func newPresenceLifecycle() (*Lifecycle, *hub.Registry) {
	log := zap.NewNop()
	registry := hub.NewRegistry(log)
	broadcaster := hub.NewBroadcaster(registry, log)
	rt := router.New(store.NewMemoryMessageStore(), store.NewMemoryQueueStore(), broadcaster, log)
	opts := ClientOptions{SendBuffer: 16, RateBurst: 1, RateInterval: time.Second}
	return NewLifecycle(registry, broadcaster, rt, auth.NewJWTAuthenticator("secret"), opts, log), registry
}

// detachedClient has no socket; its pumps are never started.
func detachedClient(l *Lifecycle, userID int64, username string) *Client {
	return newClient(nil, auth.Identity{UserID: userID, Username: username}, "test", l)
}

// queued drains the events waiting in c's send queue.
func queued(t *testing.T, c *Client) []map[string]any {
	t.Helper()
	var events []map[string]any
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return events
			}
			var ev map[string]any
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestActivateAnnouncesAndSyncsQueue(t *testing.T) {
	l, registry := newPresenceLifecycle()
	alice := detachedClient(l, 1, "alice")
	bob := detachedClient(l, 2, "bob")

	l.activate(alice)
	l.activate(bob)

	aliceEvents := queued(t, alice)
	require.Len(t, aliceEvents, 2)
	assert.Equal(t, "queue_update", aliceEvents[0]["type"])
	assert.Equal(t, "user_joined", aliceEvents[1]["type"])
	assert.Equal(t, float64(2), aliceEvents[1]["user_id"])

	bobEvents := queued(t, bob)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, "queue_update", bobEvents[0]["type"])
	assert.Equal(t, 2, registry.Count())
}

func TestTeardownAfterReconnectStaysSilent(t *testing.T) {
	l, registry := newPresenceLifecycle()
	bob := detachedClient(l, 2, "bob")
	old := detachedClient(l, 1, "alice")
	l.activate(bob)
	l.activate(old)

	fresh := detachedClient(l, 1, "alice")
	l.activate(fresh)
	queued(t, bob)

	l.teardown(old)
	assert.Empty(t, queued(t, bob), "no user_left while alice is still connected")

	sess, ok := registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, fresh, sess.Conn.(*Client))

	l.teardown(fresh)
	events := queued(t, bob)
	require.Len(t, events, 1)
	assert.Equal(t, "user_left", events[0]["type"])
	assert.Equal(t, float64(1), events[0]["user_id"])
	online := events[0]["online_users"].([]any)
	require.Len(t, online, 1)
	assert.Equal(t, float64(2), online[0].(map[string]any)["user_id"])
}

func TestTeardownRunsOnce(t *testing.T) {
	l, _ := newPresenceLifecycle()
	bob := detachedClient(l, 2, "bob")
	alice := detachedClient(l, 1, "alice")
	l.activate(bob)
	l.activate(alice)
	queued(t, bob)

	l.teardown(alice)
	l.teardown(alice)

	events := queued(t, bob)
	require.Len(t, events, 1)
	assert.Equal(t, "user_left", events[0]["type"])
}

func TestActivateAfterShutdownStartedClosesClient(t *testing.T) {
	l, _ := newPresenceLifecycle()
	l.cancel()

	c := detachedClient(l, 1, "alice")
	l.activate(c)

	assert.Empty(t, queued(t, c))
	_, ok := <-c.send
	assert.False(t, ok, "send queue must be closed so the write pump exits")
	assert.ErrorIs(t, c.Send([]byte("x")), hub.ErrConnClosed)
}
