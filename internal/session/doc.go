// Package session owns the device's connection to the cloud broker.
//
// A Session moves through four states:
//
//	Disconnected -> Connecting -> Connected
//	Connected    -> Disconnected   (transport failure)
//	Connecting   -> Failed         (connect attempts exhausted, terminal)
//
// Every Connect fetches the trust anchors and a valid bearer token from the
// credential manager. Publish re-authenticates transparently when the token
// used for the live connection is about to expire.
//
// The transport delivers inbound messages and connection-loss events on its
// own goroutine. Those callbacks only record what happened; the scheduler
// applies them on its next tick through DrainInbound. Control handlers that
// call back into the session while it is busy get ErrReentrant.
package session
