package session

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// maxInbox bounds the queue of inbound messages waiting for the next tick.
const maxInbox = 32

// Logger defines the logging interface for the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds session tuning.
type Config struct {
	// ConnectAttempts is how many dials one Connect makes before the
	// session is marked Failed.
	ConnectAttempts int
}

type inbound struct {
	topic   string
	payload []byte
}

// Session is the device's broker session. Connect, Publish, DrainInbound
// and Close must be called from a single flow (the scheduler); State and
// ConnectedSince are safe from any goroutine.
type Session struct {
	creds   Credentials
	dialer  Dialer
	handler ControlHandler
	cfg     Config
	logger  Logger
	now     func() time.Time

	state       atomic.Int32
	connectedAt atomic.Int64
	transport   Transport
	tokenExp    time.Time
	busy        bool

	// Written from transport callbacks.
	inMu       sync.Mutex
	generation uint64
	inbox      []inbound
	lost       error
	lostSet    bool
}

// New creates a disconnected session.
func New(creds Credentials, dialer Dialer, handler ControlHandler, cfg Config) *Session {
	if cfg.ConnectAttempts < 1 {
		cfg.ConnectAttempts = 1
	}
	s := &Session{
		creds:   creds,
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		logger:  noopLogger{},
		now:     time.Now,
	}
	s.setState(StateDisconnected)
	return s
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetHandler replaces the control handler. Nil disables inbound dispatch.
func (s *Session) SetHandler(handler ControlHandler) {
	s.handler = handler
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ConnectedSince returns when the live connection was established, or the
// zero time when not connected.
func (s *Session) ConnectedSince() time.Time {
	ns := s.connectedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	sessionState.Set(float64(st))
}

// Connect establishes the broker connection. Trust anchors and a valid token
// are fetched from the credential manager on every call. After the configured
// number of failed attempts the session is Failed and stays Failed.
func (s *Session) Connect(ctx context.Context) error {
	if s.busy {
		return ErrReentrant
	}
	s.busy = true
	defer func() { s.busy = false }()

	s.applyConnectionLost()

	switch s.State() {
	case StateFailed:
		return ErrSessionFailed
	case StateConnected:
		return nil
	}

	s.setState(StateConnecting)
	err := s.connect(ctx)
	if err != nil {
		s.setState(StateFailed)
		s.logger.Error("broker session failed",
			"client_id", s.creds.Identity().ClientID(),
			"error", err,
		)
		return err
	}
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	anchors, err := s.creds.GetTrustAnchors()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	pool := anchors.CertPool()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		err := s.dial(ctx, pool)
		if err == nil {
			connectAttempts.WithLabelValues("success").Inc()
			s.logger.Info("broker session established",
				"client_id", s.creds.Identity().ClientID(),
				"attempt", attempt,
			)
			return nil
		}
		connectAttempts.WithLabelValues("failure").Inc()
		s.logger.Warn("broker connect attempt failed",
			"attempt", attempt,
			"max_attempts", s.cfg.ConnectAttempts,
			"error", err,
		)
		lastErr = err
	}
	if errors.Is(lastErr, ErrHandshakeFailed) {
		return fmt.Errorf("after %d attempts: %w", s.cfg.ConnectAttempts, lastErr)
	}
	return fmt.Errorf("%w: after %d attempts: %w", ErrHandshakeFailed, s.cfg.ConnectAttempts, lastErr)
}

// dial opens one transport with a token that is valid now and makes it live.
func (s *Session) dial(ctx context.Context, pool *x509.CertPool) error {
	now := s.now()
	token, err := s.creds.GetValidToken(now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	s.inMu.Lock()
	s.generation++
	gen := s.generation
	s.lost = nil
	s.lostSet = false
	s.inMu.Unlock()

	transport, err := s.dialer.Dial(ctx, DialRequest{
		ClientID:         s.creds.Identity().ClientID(),
		Token:            token,
		RootCAs:          pool,
		OnMessage:        func(topic string, payload []byte) { s.enqueue(gen, topic, payload) },
		OnConnectionLost: func(err error) { s.markLost(gen, err) },
	})
	if err != nil {
		return err
	}

	s.transport = transport
	s.tokenExp = token.ExpiresAt
	s.connectedAt.Store(now.UnixNano())
	s.setState(StateConnected)
	return nil
}

// Publish sends one telemetry message. It returns ErrNotConnected unless the
// session is Connected. A token that is no longer usable triggers a
// reconnect with a fresh token before the message is sent.
func (s *Session) Publish(ctx context.Context, msg Message) error {
	if s.busy {
		return ErrReentrant
	}
	s.busy = true
	defer func() { s.busy = false }()

	s.applyConnectionLost()

	if s.State() != StateConnected {
		publishes.WithLabelValues("not_connected").Inc()
		return ErrNotConnected
	}

	if err := s.reauthenticate(ctx); err != nil {
		publishes.WithLabelValues("failure").Inc()
		return err
	}

	if err := s.transport.Publish(ctx, msg.Topic, msg.Payload); err != nil {
		publishes.WithLabelValues("failure").Inc()
		s.logger.Warn("publish failed, dropping connection",
			"topic", msg.Topic,
			"error", err,
		)
		s.teardown(StateDisconnected)
		return err
	}

	publishes.WithLabelValues("success").Inc()
	s.logger.Debug("telemetry published",
		"topic", msg.Topic,
		"bytes", len(msg.Payload),
	)
	return nil
}

// reauthenticate replaces the live connection when its token is no longer
// usable. The password is only presented at connect, so a new token needs a
// new connection.
func (s *Session) reauthenticate(ctx context.Context) error {
	now := s.now()
	if now.Before(s.tokenExp.Add(-s.creds.DriftMargin())) {
		return nil
	}

	s.logger.Info("bearer token near expiry, re-authenticating",
		"expires_at", s.tokenExp,
	)
	anchors, err := s.creds.GetTrustAnchors()
	if err != nil {
		s.teardown(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	s.closeTransport()
	if err := s.dial(ctx, anchors.CertPool()); err != nil {
		s.teardown(StateDisconnected)
		if errors.Is(err, ErrHandshakeFailed) {
			return err
		}
		return fmt.Errorf("%w: re-authenticate: %w", ErrHandshakeFailed, err)
	}
	reauths.Inc()
	return nil
}

// DrainInbound applies transport events recorded since the last call:
// connection loss moves the session to Disconnected and queued control
// messages are handed to the control handler in arrival order. It returns
// the number of messages dispatched.
func (s *Session) DrainInbound(ctx context.Context) int {
	if s.busy {
		return 0
	}

	s.applyConnectionLost()

	s.inMu.Lock()
	queue := s.inbox
	s.inbox = nil
	s.inMu.Unlock()

	if s.handler == nil {
		return 0
	}

	// Handlers run while the session is busy; calls back into Publish or
	// Connect from here get ErrReentrant.
	s.busy = true
	defer func() { s.busy = false }()

	handled := 0
	for _, m := range queue {
		if err := s.handler.HandleControl(ctx, m.topic, m.payload); err != nil {
			inboundMessages.WithLabelValues("error").Inc()
			s.logger.Warn("control message rejected",
				"topic", m.topic,
				"error", err,
			)
			continue
		}
		inboundMessages.WithLabelValues("handled").Inc()
		handled++
	}
	return handled
}

// Close tears the session down. A Failed session stays Failed.
func (s *Session) Close() error {
	st := StateDisconnected
	if s.State() == StateFailed {
		st = StateFailed
	}
	err := s.closeTransport()
	s.setState(st)

	s.inMu.Lock()
	s.inbox = nil
	s.inMu.Unlock()
	return err
}

// enqueue runs on the transport goroutine.
func (s *Session) enqueue(gen uint64, topic string, payload []byte) {
	if len(payload) == 0 {
		inboundMessages.WithLabelValues("dropped_empty").Inc()
		s.logger.Debug("dropping empty control message", "topic", topic)
		return
	}

	s.inMu.Lock()
	defer s.inMu.Unlock()
	if gen != s.generation {
		return
	}
	if len(s.inbox) >= maxInbox {
		inboundMessages.WithLabelValues("dropped_overflow").Inc()
		s.logger.Warn("control inbox full, dropping oldest message",
			"topic", s.inbox[0].topic,
		)
		s.inbox = s.inbox[1:]
	}
	s.inbox = append(s.inbox, inbound{
		topic:   topic,
		payload: append([]byte(nil), payload...),
	})
}

// markLost runs on the transport goroutine.
func (s *Session) markLost(gen uint64, err error) {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if gen != s.generation {
		return
	}
	s.lost = err
	s.lostSet = true
}

func (s *Session) applyConnectionLost() {
	s.inMu.Lock()
	lost, set := s.lost, s.lostSet
	s.lost = nil
	s.lostSet = false
	s.inMu.Unlock()

	if !set || s.State() != StateConnected {
		return
	}
	s.logger.Warn("broker connection lost", "error", lost)
	connectionsLost.Inc()
	s.teardown(StateDisconnected)
}

func (s *Session) teardown(st State) {
	if err := s.closeTransport(); err != nil {
		s.logger.Debug("closing transport", "error", err)
	}
	s.setState(st)
}

func (s *Session) closeTransport() error {
	if s.transport == nil {
		return nil
	}
	// Callbacks still in flight from this transport are ignored.
	s.inMu.Lock()
	s.generation++
	s.inMu.Unlock()

	err := s.transport.Close()
	s.transport = nil
	s.tokenExp = time.Time{}
	s.connectedAt.Store(0)
	return err
}
