package credential

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Watchdog is the reset-timer facility that must not fire while a token is
// being signed.
type Watchdog interface {
	Suspend()
	Resume()
}

// Logger defines the logging interface for the credential manager.
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

type noopWatchdog struct{}

func (noopWatchdog) Suspend() {}
func (noopWatchdog) Resume()  {}

// signFunc signs a claim set with the device key.
type signFunc func(claims jwt.RegisteredClaims, key *ecdsa.PrivateKey) (string, error)

func signES256(claims jwt.RegisteredClaims, key *ecdsa.PrivateKey) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
}

// ManagerConfig holds token settings for a Manager.
type ManagerConfig struct {
	// Lifetime is exp - iat for every issued token. At most MaxTokenLifetime.
	Lifetime time.Duration

	// DriftMargin is subtracted from expiry before a token is considered stale.
	// Lifetime - DriftMargin must be at least one second.
	DriftMargin time.Duration
}

// Manager issues and caches bearer tokens and holds the trust anchors.
type Manager struct {
	identity Identity
	cfg      ManagerConfig

	key     *ecdsa.PrivateKey
	anchors TrustAnchorSet
	frozen  bool
	cached  BearerToken

	watchdog Watchdog
	logger   Logger
	sign     signFunc
}

// NewManager creates a credential manager for identity.
func NewManager(identity Identity, cfg ManagerConfig) (*Manager, error) {
	if identity.DeviceID() == "" {
		return nil, fmt.Errorf("%w: zero identity", ErrInvalidIdentity)
	}
	if cfg.Lifetime <= 0 || cfg.Lifetime > MaxTokenLifetime {
		return nil, fmt.Errorf("token lifetime %v must be in (0, %v]", cfg.Lifetime, MaxTokenLifetime)
	}
	if cfg.DriftMargin < 0 || cfg.Lifetime-cfg.DriftMargin < time.Second {
		return nil, fmt.Errorf("drift margin %v leaves less than 1s of token lifetime %v", cfg.DriftMargin, cfg.Lifetime)
	}

	return &Manager{
		identity: identity,
		cfg:      cfg,
		watchdog: noopWatchdog{},
		logger:   noopLogger{},
		sign:     signES256,
	}, nil
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetWatchdog sets the watchdog suspended during token signing.
func (m *Manager) SetWatchdog(w Watchdog) {
	m.watchdog = w
}

// Identity returns the device identity.
func (m *Manager) Identity() Identity {
	return m.identity
}

// DriftMargin returns the configured expiry safety window.
func (m *Manager) DriftMargin() time.Duration {
	return m.cfg.DriftMargin
}

// LoadPrivateKey installs the signing key from a raw P-256 scalar.
//
// raw must be exactly KeySize bytes; a key with a stray leading zero byte
// or a missing byte fails with ErrInvalidKeyLength rather than being fixed up.
// Any cached token is discarded.
func (m *Manager) LoadPrivateKey(raw []byte) error {
	key, err := privateKeyFromScalar(raw)
	if err != nil {
		return err
	}
	m.key = key
	m.cached = BearerToken{}
	m.logger.Info("private key loaded", "bytes", len(raw))
	return nil
}

// HasPrivateKey reports whether a signing key is installed.
func (m *Manager) HasPrivateKey() bool {
	return m.key != nil
}

// AddTrustAnchor appends a certificate authority (PEM or DER) to the set.
// Anchors can only be added during setup, before GetTrustAnchors is first called.
func (m *Manager) AddTrustAnchor(name string, data []byte) error {
	if m.frozen {
		return ErrAnchorsFrozen
	}
	cert, err := parseCertificate(data)
	if err != nil {
		return fmt.Errorf("trust anchor %s: %w", name, err)
	}
	m.anchors.anchors = append(m.anchors.anchors, TrustAnchor{Name: name, Certificate: cert})
	m.logger.Info("trust anchor loaded", "name", name, "subject", cert.Subject.CommonName)
	return nil
}

// GetTrustAnchors returns the loaded set and freezes it.
func (m *Manager) GetTrustAnchors() (TrustAnchorSet, error) {
	if m.anchors.Len() == 0 {
		return TrustAnchorSet{}, ErrNoTrustAnchors
	}
	m.frozen = true
	return m.anchors, nil
}

// GetValidToken returns a token usable at now, signing a fresh one when the
// cached token is missing or within the drift margin of expiry.
func (m *Manager) GetValidToken(now time.Time) (BearerToken, error) {
	if m.cached.UsableAt(now, m.cfg.DriftMargin) {
		return m.cached, nil
	}
	if m.key == nil {
		return BearerToken{}, fmt.Errorf("%w: no private key loaded", ErrSigningFailed)
	}

	// JWT numeric dates have second precision; keep the cached times identical
	// to the signed claims.
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(m.cfg.Lifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    m.identity.Issuer(),
		Audience:  jwt.ClaimStrings{m.identity.ProjectID()},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	m.logger.Info("refreshing bearer token", "expires_at", expiresAt)
	signed, err := m.signSuspended(claims)
	if err != nil {
		tokenSignFailures.Inc()
		return BearerToken{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	m.cached = BearerToken{
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: signed,
	}
	tokenRefreshes.Inc()
	tokenExpiry.Set(float64(expiresAt.Unix()))
	return m.cached, nil
}

// signSuspended runs the signer with the watchdog suspended. The deferred
// resume covers both the error return and a panicking signer.
func (m *Manager) signSuspended(claims jwt.RegisteredClaims) (string, error) {
	m.watchdog.Suspend()
	defer m.watchdog.Resume()
	return m.sign(claims, m.key)
}
