// Package server implements the HTTP and WebSocket surface of the chatroom.
//
// A Lifecycle authenticates each upgraded connection, registers it with the
// hub registry, and runs one read pump and one write pump per Client. Inbound
// frames go to the event router; outbound events arrive through the
// broadcaster. Handlers expose the WebSocket endpoint, a health check, and
// read-only views of message history and the music queue.
package server
