package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// healthCheckTimeout bounds each dependency probe in /healthz.
const healthCheckTimeout = 2 * time.Second

// Request timeouts for the diagnostics listener.
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// SessionStatus reports the broker session. *session.Session satisfies it.
type SessionStatus interface {
	State() session.State
	ConnectedSince() time.Time
}

// SetpointSource reports saved setpoints. *setpoint.Store satisfies it.
type SetpointSource interface {
	Snapshot() []setpoint.Record
}

// HealthChecker is a dependency probed by /healthz. *database.DB and
// *influxdb.Client satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger defines the logging interface for the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the dependencies required by the diagnostics server.
type Deps struct {
	Config    config.DiagnosticsConfig
	Logger    Logger
	Session   SessionStatus
	Setpoints SetpointSource
	Gatherer  prometheus.Gatherer
	DeviceID  string
	ClientID  string
	Broker    string
	Version   string

	// HealthChecks are probed by /healthz, keyed by component name.
	HealthChecks map[string]HealthChecker
}

// Server is the diagnostics HTTP server.
type Server struct {
	cfg       config.DiagnosticsConfig
	logger    Logger
	session   SessionStatus
	setpoints SetpointSource
	gatherer  prometheus.Gatherer
	checks    map[string]HealthChecker
	deviceID  string
	clientID  string
	broker    string
	version   string
	started   time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a diagnostics server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Setpoints == nil {
		return nil, fmt.Errorf("setpoint source is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		session:   deps.Session,
		setpoints: deps.Setpoints,
		gatherer:  deps.Gatherer,
		checks:    deps.HealthChecks,
		deviceID:  deps.DeviceID,
		clientID:  deps.ClientID,
		broker:    deps.Broker,
		version:   deps.Version,
		started:   time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. A bind
// failure is returned here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("diagnostics listener: %w", err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics server error", "error", err)
		}
	}()

	s.logger.Info("diagnostics server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("diagnostics server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down diagnostics server: %w", err)
	}
	return nil
}
