package session

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/credential"
)

// Credentials is the part of the credential manager a session uses.
type Credentials interface {
	Identity() credential.Identity
	DriftMargin() time.Duration
	GetValidToken(now time.Time) (credential.BearerToken, error)
	GetTrustAnchors() (credential.TrustAnchorSet, error)
}

// DialRequest carries everything a Dialer needs for one connection.
type DialRequest struct {
	ClientID string
	Token    credential.BearerToken
	RootCAs  *x509.CertPool

	// OnMessage and OnConnectionLost are called from the transport's own
	// goroutine. They must not block.
	OnMessage        func(topic string, payload []byte)
	OnConnectionLost func(err error)
}

// Transport is one live encrypted connection. It is owned by the session
// and closed exactly once.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Transport, error)
}

// ControlHandler receives inbound command and config messages.
type ControlHandler interface {
	HandleControl(ctx context.Context, topic string, payload []byte) error
}

// Message is one outbound telemetry message. It is not retained after
// Publish returns.
type Message struct {
	Topic     string
	Payload   []byte
	Timestamp time.Time
}
