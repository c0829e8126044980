package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrSendBufferFull is returned by a Conn whose outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnClosed is returned by a Conn that no longer accepts events.
	ErrConnClosed = errors.New("connection closed")
)

// DeliveryError reports that an event could not be handed to one recipient.
// The recipient has already been pruned from the registry when it is returned.
type DeliveryError struct {
	UserID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to user %d failed: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
