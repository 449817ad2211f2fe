package session

import "errors"

// Domain errors for the session package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, session.ErrNotConnected) {
//	    // leave the state dirty and retry next tick
//	}
var (
	// ErrHandshakeFailed is returned when the broker connection or its
	// subscriptions could not be established.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrNotConnected is returned by Publish outside the Connected state.
	ErrNotConnected = errors.New("session: not connected")

	// ErrTimeout is returned when a transport operation exceeded its bound.
	ErrTimeout = errors.New("session: operation timed out")

	// ErrProtocol is returned when the broker rejected an operation.
	ErrProtocol = errors.New("session: protocol error")

	// ErrSessionFailed is returned by Connect once the session is Failed.
	ErrSessionFailed = errors.New("session: failed, restart required")

	// ErrReentrant is returned when a callback calls into a busy session.
	ErrReentrant = errors.New("session: re-entrant call")
)
