package credential

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// TrustAnchor is one certificate authority used to validate the broker chain.
type TrustAnchor struct {
	Name        string
	Certificate *x509.Certificate
}

// TrustAnchorSet is an ordered set of certificate authorities (primary first,
// then backup). Order is insertion order.
type TrustAnchorSet struct {
	anchors []TrustAnchor
}

// Len returns the number of anchors.
func (s TrustAnchorSet) Len() int {
	return len(s.anchors)
}

// Anchors returns a copy of the anchors in insertion order.
func (s TrustAnchorSet) Anchors() []TrustAnchor {
	out := make([]TrustAnchor, len(s.anchors))
	copy(out, s.anchors)
	return out
}

// CertPool builds the pool handed to the TLS layer.
func (s TrustAnchorSet) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, a := range s.anchors {
		pool.AddCert(a.Certificate)
	}
	return pool
}

// parseCertificate accepts a PEM encoded CERTIFICATE block or raw DER.
func parseCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidCertificate, block.Type)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return cert, nil
}
