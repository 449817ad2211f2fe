// Package credential owns the device's proof of identity towards the cloud broker.
//
// It manages:
//   - The immutable device identity (project, location, registry, device)
//   - The elliptic-curve signing key (P-256, 32-byte scalar)
//   - Short-lived ES256 bearer tokens, cached until they approach expiry
//   - The ordered trust-anchor set used to validate the broker's chain
//
// # Token lifecycle
//
// GetValidToken returns the cached token while now < expiresAt - driftMargin
// and signs a new one otherwise. Signing can be slow on small hardware, so
// the watchdog is suspended for exactly the duration of the signing call and
// resumed on every exit path.
//
// # Loading strategies
//
// Keys and trust anchors arrive either inline from configuration
// (InlineLoader) or as DER files on the flash file store (FileLoader).
// Setup runs the chosen loader and fails when no trust anchor was loaded.
//
// # Concurrency
//
// A Manager is driven from the scheduler's single flow and is not safe for
// concurrent use.
package credential
