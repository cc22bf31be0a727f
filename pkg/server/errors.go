package server

import (
	"errors"
	"fmt"

	"github.com/vango-dev/tether/pkg/vdom"
)

// Sentinel errors for common session and server error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrSessionNotFound is returned when no session exists for an identity.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrDispatchNotFound is returned when a callback names a node or
	// handler that does not exist. It is never reported to the client.
	ErrDispatchNotFound = errors.New("server: dispatch target not found")

	// ErrMaxSessionsReached is returned when the maximum number of sessions is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrManagerClosed is returned when creating a session after Shutdown.
	ErrManagerClosed = errors.New("server: session manager closed")

	// ErrNoRootFactory is returned when a session is requested but the
	// manager has no way to build its tree.
	ErrNoRootFactory = errors.New("server: no root factory")

	// ErrFactoryPanic is returned when the root factory panics while
	// building a session.
	ErrFactoryPanic = errors.New("server: root factory panicked")
)

// SendError records a failed write to one socket during broadcast. The
// socket is pruned; SendError is logged and counted, never returned from
// Broadcast.
type SendError struct {
	SessionID string
	Remote    string
	Err       error
}

// Error returns the error message with session context.
func (e *SendError) Error() string {
	if e.Remote == "" {
		return fmt.Sprintf("server: session %s: send: %v", e.SessionID, e.Err)
	}
	return fmt.Sprintf("server: session %s: send to %s: %v", e.SessionID, e.Remote, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SendError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a panic that occurred in a node handler.
type HandlerError struct {
	SessionID string
	NodeID    vdom.ID
	Handler   string
	Panic     any
	Stack     []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("server: handler panic in session %s, node %d, handler %s: %v",
		e.SessionID, e.NodeID, e.Handler, e.Panic)
}

// NewHandlerError creates a new HandlerError.
func NewHandlerError(sessionID string, nodeID vdom.ID, handler string, panicVal any, stack []byte) *HandlerError {
	return &HandlerError{
		SessionID: sessionID,
		NodeID:    nodeID,
		Handler:   handler,
		Panic:     panicVal,
		Stack:     stack,
	}
}
