package credential

import "errors"

// Domain errors for the credential package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, credential.ErrInvalidKeyLength) {
//	    // key material is not a P-256 scalar
//	}
var (
	// ErrInvalidKeyLength is returned when the private key is not exactly one curve scalar long.
	// Keys are never truncated or padded to fit.
	ErrInvalidKeyLength = errors.New("credential: invalid private key length")

	// ErrInvalidKey is returned when key material cannot be decoded or is out of range.
	ErrInvalidKey = errors.New("credential: invalid private key")

	// ErrNoTrustAnchors is returned when trust anchors are requested before any were loaded.
	ErrNoTrustAnchors = errors.New("credential: no trust anchors loaded")

	// ErrSigningFailed is returned when a bearer token cannot be signed.
	ErrSigningFailed = errors.New("credential: token signing failed")

	// ErrInvalidCertificate is returned when trust anchor material is not a certificate.
	ErrInvalidCertificate = errors.New("credential: invalid certificate")

	// ErrAnchorsFrozen is returned when a trust anchor is added after the set was first used.
	ErrAnchorsFrozen = errors.New("credential: trust anchor set is frozen")

	// ErrInvalidIdentity is returned when a device identity field is empty.
	ErrInvalidIdentity = errors.New("credential: invalid device identity")
)
