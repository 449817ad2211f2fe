package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/credential"
)

var baseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Fakes
// =============================================================================

type fakeCredentials struct {
	identity   credential.Identity
	anchorsErr error
	tokenErr   error
	issued     int
}

func newFakeCredentials(t *testing.T) *fakeCredentials {
	t.Helper()
	id, err := credential.NewIdentity("proj", "europe-west1", "reg", "hp-01")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return &fakeCredentials{identity: id}
}

func (c *fakeCredentials) Identity() credential.Identity { return c.identity }
func (c *fakeCredentials) DriftMargin() time.Duration    { return time.Minute }

func (c *fakeCredentials) GetValidToken(now time.Time) (credential.BearerToken, error) {
	if c.tokenErr != nil {
		return credential.BearerToken{}, c.tokenErr
	}
	c.issued++
	return credential.BearerToken{
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Signature: fmt.Sprintf("tok-%d", c.issued),
	}, nil
}

func (c *fakeCredentials) GetTrustAnchors() (credential.TrustAnchorSet, error) {
	return credential.TrustAnchorSet{}, c.anchorsErr
}

type fakeTransport struct {
	mu         sync.Mutex
	published  []Message
	publishErr error
	closed     int
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.publishErr != nil {
		return t.publishErr
	}
	t.published = append(t.published, Message{Topic: topic, Payload: payload})
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

type fakeDialer struct {
	failures   int // fail this many dials before succeeding
	err        error
	requests   []DialRequest
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(_ context.Context, req DialRequest) (Transport, error) {
	d.requests = append(d.requests, req)
	if d.failures > 0 {
		d.failures--
		return nil, d.err
	}
	tr := &fakeTransport{}
	d.transports = append(d.transports, tr)
	return tr, nil
}

func (d *fakeDialer) last() DialRequest {
	return d.requests[len(d.requests)-1]
}

type recordingHandler struct {
	calls []inbound
	err   error
	hook  func()
}

func (h *recordingHandler) HandleControl(_ context.Context, topic string, payload []byte) error {
	h.calls = append(h.calls, inbound{topic: topic, payload: payload})
	if h.hook != nil {
		h.hook()
	}
	return h.err
}

func newTestSession(t *testing.T, attempts int) (*Session, *fakeCredentials, *fakeDialer, *recordingHandler) {
	t.Helper()
	creds := newFakeCredentials(t)
	dialer := &fakeDialer{err: errors.New("connection refused")}
	handler := &recordingHandler{}
	s := New(creds, dialer, handler, Config{ConnectAttempts: attempts})
	s.now = func() time.Time { return baseTime }
	return s, creds, dialer, handler
}

func connected(t *testing.T) (*Session, *fakeCredentials, *fakeDialer, *recordingHandler) {
	t.Helper()
	s, creds, dialer, handler := newTestSession(t, 3)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s, creds, dialer, handler
}

// =============================================================================
// Connect
// =============================================================================

func TestNew_StartsDisconnected(t *testing.T) {
	s, _, _, _ := newTestSession(t, 1)
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", s.State(), StateDisconnected)
	}
	if !s.ConnectedSince().IsZero() {
		t.Error("ConnectedSince() should be zero before Connect")
	}
}

func TestConnect_Success(t *testing.T) {
	s, _, dialer, _ := connected(t)

	if s.State() != StateConnected {
		t.Fatalf("State() = %v, want %v", s.State(), StateConnected)
	}
	req := dialer.last()
	if req.ClientID != "projects/proj/locations/europe-west1/registries/reg/devices/hp-01" {
		t.Errorf("ClientID = %q", req.ClientID)
	}
	if req.Token.Signature != "tok-1" {
		t.Errorf("Token.Signature = %q, want tok-1", req.Token.Signature)
	}
	if req.RootCAs == nil {
		t.Error("RootCAs should be set")
	}
	if !s.ConnectedSince().Equal(baseTime) {
		t.Errorf("ConnectedSince() = %v, want %v", s.ConnectedSince(), baseTime)
	}

	// Connecting again while connected is a no-op.
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if len(dialer.requests) != 1 {
		t.Errorf("dials = %d, want 1", len(dialer.requests))
	}
}

func TestConnect_RetriesWithinAttempts(t *testing.T) {
	s, _, dialer, _ := newTestSession(t, 3)
	dialer.failures = 2

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(dialer.requests) != 3 {
		t.Errorf("dials = %d, want 3", len(dialer.requests))
	}
	if s.State() != StateConnected {
		t.Errorf("State() = %v, want %v", s.State(), StateConnected)
	}
}

func TestConnect_FailureIsTerminal(t *testing.T) {
	s, _, dialer, _ := newTestSession(t, 2)
	dialer.failures = 10

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Connect() error = %v, want ErrHandshakeFailed", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("State() = %v, want %v", s.State(), StateFailed)
	}
	if len(dialer.requests) != 2 {
		t.Errorf("dials = %d, want 2", len(dialer.requests))
	}

	if err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after failure error = %v, want ErrNotConnected", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionFailed) {
		t.Errorf("Connect() after failure error = %v, want ErrSessionFailed", err)
	}
	if len(dialer.requests) != 2 {
		t.Errorf("dials after failure = %d, want 2", len(dialer.requests))
	}
}

func TestConnect_TrustAnchorError(t *testing.T) {
	s, creds, dialer, _ := newTestSession(t, 3)
	creds.anchorsErr = credential.ErrNoTrustAnchors

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) || !errors.Is(err, credential.ErrNoTrustAnchors) {
		t.Fatalf("Connect() error = %v, want ErrHandshakeFailed wrapping ErrNoTrustAnchors", err)
	}
	if len(dialer.requests) != 0 {
		t.Errorf("dials = %d, want 0", len(dialer.requests))
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %v, want %v", s.State(), StateFailed)
	}
}

func TestConnect_TimeoutKeptInChain(t *testing.T) {
	s, _, dialer, _ := newTestSession(t, 1)
	dialer.failures = 1
	dialer.err = fmt.Errorf("%w: connack", ErrTimeout)

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) || !errors.Is(err, ErrTimeout) {
		t.Errorf("Connect() error = %v, want ErrHandshakeFailed and ErrTimeout", err)
	}
}

// =============================================================================
// Publish
// =============================================================================

func TestPublish_NotConnected(t *testing.T) {
	payloads := [][]byte{nil, {}, []byte("{}"), make([]byte, 4096)}
	s, _, dialer, _ := newTestSession(t, 1)

	for i, p := range payloads {
		err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: p})
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("payload %d: Publish() error = %v, want ErrNotConnected", i, err)
		}
	}
	if len(dialer.requests) != 0 {
		t.Errorf("Publish() must not dial, dials = %d", len(dialer.requests))
	}
}

func TestPublish_Success(t *testing.T) {
	s, _, dialer, _ := connected(t)

	msg := Message{Topic: "/devices/hp-01/events", Payload: []byte(`{"mode":"heat"}`), Timestamp: baseTime}
	if err := s.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	tr := dialer.transports[0]
	if len(tr.published) != 1 || tr.published[0].Topic != msg.Topic || string(tr.published[0].Payload) != string(msg.Payload) {
		t.Errorf("published = %+v", tr.published)
	}
}

func TestPublish_FailureDisconnects(t *testing.T) {
	s, _, dialer, _ := connected(t)
	tr := dialer.transports[0]
	tr.publishErr = fmt.Errorf("%w: ack", ErrTimeout)

	err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Publish() error = %v, want ErrTimeout", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", s.State(), StateDisconnected)
	}
	if tr.closed != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closed)
	}

	// Next tick reconnects.
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(dialer.transports) != 2 {
		t.Errorf("transports = %d, want 2", len(dialer.transports))
	}
}

func TestPublish_ReauthenticatesNearExpiry(t *testing.T) {
	s, _, dialer, _ := connected(t)

	// Inside the drift margin of the first token.
	s.now = func() time.Time { return baseTime.Add(59*time.Minute + 30*time.Second) }

	if err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(dialer.requests) != 2 {
		t.Fatalf("dials = %d, want 2", len(dialer.requests))
	}
	if got := dialer.last().Token.Signature; got != "tok-2" {
		t.Errorf("re-auth token = %q, want tok-2", got)
	}
	if dialer.transports[0].closed != 1 {
		t.Error("old transport should be closed")
	}
	if len(dialer.transports[1].published) != 1 {
		t.Error("message should go out on the new transport")
	}
}

func TestPublish_TokenStillUsableKeepsConnection(t *testing.T) {
	s, _, dialer, _ := connected(t)
	s.now = func() time.Time { return baseTime.Add(58 * time.Minute) }

	if err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(dialer.requests) != 1 {
		t.Errorf("dials = %d, want 1", len(dialer.requests))
	}
}

func TestPublish_ReauthFailureDisconnects(t *testing.T) {
	s, creds, _, _ := connected(t)
	s.now = func() time.Time { return baseTime.Add(2 * time.Hour) }
	creds.tokenErr = credential.ErrSigningFailed

	err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")})
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Publish() error = %v, want ErrHandshakeFailed", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", s.State(), StateDisconnected)
	}
}

// =============================================================================
// Inbound
// =============================================================================

func TestDrainInbound_DispatchesInOrder(t *testing.T) {
	s, _, dialer, handler := connected(t)
	req := dialer.last()

	req.OnMessage("/devices/hp-01/commands", []byte(`{"mode":"cool"}`))
	req.OnMessage("/devices/hp-01/config", []byte(`{"mode":"heat"}`))

	if len(handler.calls) != 0 {
		t.Fatal("handler must not run on the transport goroutine")
	}
	if n := s.DrainInbound(context.Background()); n != 2 {
		t.Fatalf("DrainInbound() = %d, want 2", n)
	}
	if handler.calls[0].topic != "/devices/hp-01/commands" || handler.calls[1].topic != "/devices/hp-01/config" {
		t.Errorf("calls = %+v", handler.calls)
	}
	if n := s.DrainInbound(context.Background()); n != 0 {
		t.Errorf("second DrainInbound() = %d, want 0", n)
	}
}

func TestDrainInbound_DropsEmptyPayload(t *testing.T) {
	s, _, dialer, handler := connected(t)
	req := dialer.last()

	req.OnMessage("/devices/hp-01/commands", nil)
	req.OnMessage("/devices/hp-01/config", []byte{})

	if n := s.DrainInbound(context.Background()); n != 0 {
		t.Errorf("DrainInbound() = %d, want 0", n)
	}
	if len(handler.calls) != 0 {
		t.Errorf("handler called %d times for empty payloads", len(handler.calls))
	}
}

func TestDrainInbound_CopiesPayload(t *testing.T) {
	s, _, dialer, handler := connected(t)
	buf := []byte(`{"mode":"cool"}`)
	dialer.last().OnMessage("/devices/hp-01/commands", buf)
	buf[2] = 'X'

	s.DrainInbound(context.Background())
	if string(handler.calls[0].payload) != `{"mode":"cool"}` {
		t.Errorf("payload = %q, want the bytes as received", handler.calls[0].payload)
	}
}

func TestDrainInbound_HandlerErrorContinues(t *testing.T) {
	s, _, dialer, handler := connected(t)
	handler.err = errors.New("bad json")
	req := dialer.last()
	req.OnMessage("/devices/hp-01/commands", []byte("x"))
	req.OnMessage("/devices/hp-01/commands", []byte("y"))

	if n := s.DrainInbound(context.Background()); n != 0 {
		t.Errorf("DrainInbound() = %d, want 0 handled", n)
	}
	if len(handler.calls) != 2 {
		t.Errorf("handler calls = %d, want 2", len(handler.calls))
	}
}

func TestDrainInbound_ReentrantCallsRejected(t *testing.T) {
	s, _, dialer, handler := connected(t)

	var publishErr, connectErr error
	handler.hook = func() {
		publishErr = s.Publish(context.Background(), Message{Topic: "/devices/hp-01/state", Payload: []byte("{}")})
		connectErr = s.Connect(context.Background())
	}
	dialer.last().OnMessage("/devices/hp-01/commands", []byte(`{"mode":"cool"}`))
	s.DrainInbound(context.Background())

	if !errors.Is(publishErr, ErrReentrant) {
		t.Errorf("Publish() from handler error = %v, want ErrReentrant", publishErr)
	}
	if !errors.Is(connectErr, ErrReentrant) {
		t.Errorf("Connect() from handler error = %v, want ErrReentrant", connectErr)
	}
	if len(dialer.transports[0].published) != 0 {
		t.Error("re-entrant publish must not reach the transport")
	}

	// Outside the handler the session works normally.
	if err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")}); err != nil {
		t.Errorf("Publish() after drain error = %v", err)
	}
}

func TestDrainInbound_InboxBounded(t *testing.T) {
	s, _, dialer, handler := connected(t)
	req := dialer.last()
	for i := 0; i < maxInbox+5; i++ {
		req.OnMessage("/devices/hp-01/commands", []byte(fmt.Sprintf("%d", i)))
	}

	if n := s.DrainInbound(context.Background()); n != maxInbox {
		t.Fatalf("DrainInbound() = %d, want %d", n, maxInbox)
	}
	if got := string(handler.calls[0].payload); got != "5" {
		t.Errorf("oldest kept payload = %q, want 5", got)
	}
}

func TestConnectionLost(t *testing.T) {
	s, _, dialer, _ := connected(t)
	dialer.last().OnConnectionLost(errors.New("EOF"))

	// The callback only records the loss.
	if s.State() != StateConnected {
		t.Fatalf("State() = %v before drain, want %v", s.State(), StateConnected)
	}
	s.DrainInbound(context.Background())
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v after drain, want %v", s.State(), StateDisconnected)
	}
	if dialer.transports[0].closed != 1 {
		t.Errorf("transport closed %d times, want 1", dialer.transports[0].closed)
	}
}

func TestConnectionLost_PublishSeesLoss(t *testing.T) {
	s, _, dialer, _ := connected(t)
	dialer.last().OnConnectionLost(errors.New("EOF"))

	err := s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestStaleCallbacksIgnored(t *testing.T) {
	s, _, dialer, handler := connected(t)
	old := dialer.last()

	dialer.transports[0].publishErr = errors.New("broken pipe")
	_ = s.Publish(context.Background(), Message{Topic: "/devices/hp-01/events", Payload: []byte("{}")})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	old.OnConnectionLost(errors.New("late"))
	old.OnMessage("/devices/hp-01/commands", []byte(`{"mode":"cool"}`))
	s.DrainInbound(context.Background())

	if s.State() != StateConnected {
		t.Errorf("State() = %v, want %v", s.State(), StateConnected)
	}
	if len(handler.calls) != 0 {
		t.Errorf("handler calls = %d, want 0", len(handler.calls))
	}
}

// =============================================================================
// Close
// =============================================================================

func TestClose(t *testing.T) {
	s, _, dialer, _ := connected(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", s.State(), StateDisconnected)
	}
	if dialer.transports[0].closed != 1 {
		t.Errorf("transport closed %d times, want 1", dialer.transports[0].closed)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if dialer.transports[0].closed != 1 {
		t.Error("second Close() must not close the transport again")
	}
}

func TestClose_FailedStaysFailed(t *testing.T) {
	s, _, dialer, _ := newTestSession(t, 1)
	dialer.failures = 1
	_ = s.Connect(context.Background())
	_ = s.Close()
	if s.State() != StateFailed {
		t.Errorf("State() = %v, want %v", s.State(), StateFailed)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateFailed:       "failed",
		State(42):         "unknown",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
