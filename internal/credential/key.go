package credential

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the length of a P-256 private scalar in bytes.
const KeySize = 32

// DecodeKeyHex decodes key material written as hex pairs, optionally
// colon-separated and wrapped over several lines, as printed by
// `openssl ec -noout -text`.
//
// The length is not checked here; LoadPrivateKey rejects anything that is
// not exactly KeySize bytes.
func DecodeKeyHex(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	var pairs []string
	if strings.Contains(cleaned, ":") {
		pairs = strings.Split(cleaned, ":")
	} else {
		if len(cleaned)%2 != 0 {
			return nil, fmt.Errorf("%w: odd number of hex digits", ErrInvalidKey)
		}
		for i := 0; i < len(cleaned); i += 2 {
			pairs = append(pairs, cleaned[i:i+2])
		}
	}

	out := make([]byte, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: pair %d %q is not two hex digits", ErrInvalidKey, i, p)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pair %d: %w", ErrInvalidKey, i, err)
		}
		out = append(out, b[0])
	}
	return out, nil
}

// scalarFromDER extracts the private scalar from a DER encoded SEC 1 EC key
// (`openssl ec -outform DER`).
func scalarFromDER(der []byte) ([]byte, error) {
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s is not P-256", ErrInvalidKey, key.Curve.Params().Name)
	}
	raw, err := key.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return raw, nil
}

// privateKeyFromScalar builds a P-256 signing key from a raw scalar. A zero
// scalar or one not below the group order is rejected.
func privateKeyFromScalar(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(raw), KeySize)
	}

	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return key, nil
}
