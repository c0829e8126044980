// Package testhelpers provides common utilities for testing the chatroom
// server over real HTTP and WebSocket connections.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL converts an httptest server URL into the chat endpoint URL
// carrying token.
func WebSocketURL(serverURL, token string) string {
	u := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// IssueToken signs an HS256 token for userID and username that expires in
// one hour.
func IssueToken(t *testing.T, secret string, userID int64, username string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(userID, 10),
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the test origin. The handshake response is returned for status checks.
func ConnectWebSocket(url string) (*websocket.Conn, *http.Response, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header; an empty
// origin sends none.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// SendEvent marshals event and sends it as a single text frame.
func SendEvent(t *testing.T, conn *websocket.Conn, event any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(event))
}

// ReadEvent reads one event frame, failing the test if none arrives within
// timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// ReadEventOfType reads frames until one of type typ arrives and returns it.
func ReadEventOfType(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("no %s event received within %s", typ, timeout)
		}
		event := ReadEvent(t, conn, remaining)
		if event["type"] == typ {
			return event
		}
	}
}

// ExpectNoEvent fails the test if any frame arrives within wait. The
// connection is unusable for reads afterwards when the deadline fires.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", data)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// GetJSON performs a GET request and decodes the JSON body into out. It
// returns the status code.
func GetJSON(t *testing.T, url string, out any) int {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
