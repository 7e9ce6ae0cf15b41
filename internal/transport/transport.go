// Package transport wraps a duplex websocket channel behind a small
// emit/subscribe surface. Commands go out as fire-and-forget envelopes;
// inbound envelopes are dispatched to registered handlers in arrival
// order, one at a time.
package transport

import (
	"encoding/json"
	"errors"
)

// Envelope is the wire frame shared by both directions: a named event
// plus an event-specific JSON payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ErrClosed is returned by Emit once the underlying channel is gone.
var ErrClosed = errors.New("transport: closed")

// Handler receives the raw payload of a single inbound event.
type Handler func(payload json.RawMessage)

// Transport is a duplex event channel. A destroyed transport is not
// reusable; reconnection means dialing a fresh one and re-subscribing.
type Transport interface {
	// Emit sends a one-way command. There is no acknowledgment; effects
	// surface later as independent inbound events.
	Emit(event string, payload any) error

	// On registers a handler for the named inbound event and returns an
	// unsubscribe function. Unsubscribe is idempotent and safe to call
	// on an already-closed transport; after it returns, the handler is
	// never invoked again.
	On(event string, h Handler) (unsubscribe func())

	Close() error
}
