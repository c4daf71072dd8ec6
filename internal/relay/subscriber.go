package relay

import (
	"errors"

	"github.com/gorilla/websocket"
)

// Close codes used when the relay ends a connection.
const (
	CloseNormal        = websocket.CloseNormalClosure
	CloseGoingAway     = websocket.CloseGoingAway
	ClosePolicy        = websocket.ClosePolicyViolation
	CloseInternalError = websocket.CloseInternalServerErr
	CloseTryAgainLater = websocket.CloseTryAgainLater
)

var (
	ErrOutboxFull       = errors.New("subscriber outbox full")
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// Subscriber is a delivery target registered in a group.
type Subscriber interface {
	ID() string
	// Deliver queues data without blocking.
	Deliver(data []byte) error
	// Close ends the connection with the given close code. Safe to call more than once.
	Close(code int, reason string)
}
