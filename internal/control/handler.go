package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
)

// Command is the decoded form of one control message.
type Command struct {
	Mode              *heatpump.Mode `json:"mode,omitempty"`
	TargetTemperature *float64       `json:"target_temperature,omitempty"`
	Fan               *string        `json:"fan,omitempty"`
	Vane              *string        `json:"vane,omitempty"`
	RemoteTemperature *float64       `json:"remote_temperature,omitempty"`
}

func (c Command) empty() bool {
	return c.Mode == nil && c.TargetTemperature == nil && c.Fan == nil &&
		c.Vane == nil && c.RemoteTemperature == nil
}

func (c Command) changesSettings() bool {
	return c.Mode != nil || c.TargetTemperature != nil || c.Fan != nil || c.Vane != nil
}

// ParseCommand decodes payload. Unknown fields are rejected.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.empty() {
		return Command{}, fmt.Errorf("%w: no fields set", ErrInvalidCommand)
	}
	return cmd, nil
}

// SetpointSource returns saved setpoints. *setpoint.Store satisfies it.
type SetpointSource interface {
	Load(mode setpoint.Mode) (float32, bool)
}

// Logger defines the logging interface for the handler.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Handler applies control messages to a driver.
type Handler struct {
	driver    heatpump.Driver
	setpoints SetpointSource
	logger    Logger

	mu      sync.Mutex
	current heatpump.Settings
	known   bool
}

// NewHandler creates a handler for driver.
func NewHandler(driver heatpump.Driver, setpoints SetpointSource) *Handler {
	return &Handler{
		driver:    driver,
		setpoints: setpoints,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// Observe records the settings the unit last reported. Commands are applied
// on top of them.
func (h *Handler) Observe(s heatpump.Settings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = s
	h.known = true
}

// HandleControl decodes and applies one control message.
func (h *Handler) HandleControl(ctx context.Context, topic string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		return err
	}

	if cmd.RemoteTemperature != nil {
		if err := h.driver.SetRemoteTemperature(ctx, *cmd.RemoteTemperature); err != nil {
			return fmt.Errorf("%w: remote temperature: %w", ErrDriver, err)
		}
		h.logger.Info("remote temperature set",
			"topic", topic,
			"celsius", *cmd.RemoteTemperature,
		)
	}

	if !cmd.changesSettings() {
		return nil
	}

	h.mu.Lock()
	next, known := h.current, h.known
	h.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: device state not yet synced", ErrInvalidCommand)
	}

	next = h.merge(next, cmd)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := h.driver.Apply(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrDriver, err)
	}

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()

	h.logger.Info("control command applied",
		"topic", topic,
		"mode", next.Mode,
		"target_temperature", next.TargetTemperature,
	)
	return nil
}

// merge applies cmd to s. A mode change without a target restores the
// setpoint saved for the new mode.
func (h *Handler) merge(s heatpump.Settings, cmd Command) heatpump.Settings {
	if cmd.Mode != nil && *cmd.Mode != s.Mode {
		s.Mode = *cmd.Mode
		if cmd.TargetTemperature == nil {
			if v, ok := h.savedSetpoint(s.Mode); ok {
				s.TargetTemperature = v
			}
		}
	}
	if cmd.TargetTemperature != nil {
		s.TargetTemperature = *cmd.TargetTemperature
	}
	if cmd.Fan != nil {
		s.Fan = *cmd.Fan
	}
	if cmd.Vane != nil {
		s.Vane = *cmd.Vane
	}
	return s
}

func (h *Handler) savedSetpoint(mode heatpump.Mode) (float64, bool) {
	if h.setpoints == nil {
		return 0, false
	}
	m, err := setpoint.ParseMode(string(mode))
	if err != nil {
		return 0, false
	}
	v, ok := h.setpoints.Load(m)
	return float64(v), ok
}
