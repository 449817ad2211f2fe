package watchdog

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/daemon"
)

// DefaultSuspendTimeout is the watchdog timeout installed while suspended.
const DefaultSuspendTimeout = 2 * time.Minute

// Logger defines the logging interface for the watchdog.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// notifyFunc sends one sd_notify state string.
type notifyFunc func(state string) (bool, error)

func sdNotify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

// Systemd drives the sd_notify watchdog protocol.
type Systemd struct {
	interval       time.Duration
	suspendTimeout time.Duration
	depth          int

	notify notifyFunc
	logger Logger
}

// NewSystemd reads WATCHDOG_USEC from the environment. A zero interval means
// the service manager expects no keep-alives and the returned value is inert.
func NewSystemd() (*Systemd, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, fmt.Errorf("reading watchdog settings: %w", err)
	}
	return newSystemd(interval, sdNotify), nil
}

func newSystemd(interval time.Duration, notify notifyFunc) *Systemd {
	return &Systemd{
		interval:       interval,
		suspendTimeout: DefaultSuspendTimeout,
		notify:         notify,
		logger:         noopLogger{},
	}
}

// SetLogger sets the logger for the watchdog.
func (w *Systemd) SetLogger(logger Logger) {
	w.logger = logger
}

// Disable stops keep-alives and timeout changes even when systemd asks for
// them. Ready and Stopping are still sent.
func (w *Systemd) Disable() {
	w.interval = 0
}

// Enabled reports whether systemd expects keep-alives.
func (w *Systemd) Enabled() bool {
	return w.interval > 0
}

// Interval returns the configured watchdog timeout.
func (w *Systemd) Interval() time.Duration {
	return w.interval
}

// Ready tells systemd that startup has finished.
func (w *Systemd) Ready() {
	w.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func (w *Systemd) Stopping() {
	w.send(daemon.SdNotifyStopping)
}

// Kick resets the watchdog timer. Kicks are dropped while suspended.
func (w *Systemd) Kick() {
	if !w.Enabled() || w.depth > 0 {
		return
	}
	w.send(daemon.SdNotifyWatchdog)
}

// Suspend extends the watchdog timeout for a long blocking operation.
// Calls nest; only the outermost pair touches systemd.
func (w *Systemd) Suspend() {
	w.depth++
	if !w.Enabled() || w.depth > 1 {
		return
	}
	w.send(daemon.SdNotifyWatchdog)
	w.send(usec(w.suspendTimeout))
	w.logger.Debug("watchdog suspended", "timeout", w.suspendTimeout)
}

// Resume restores the original timeout and kicks immediately.
func (w *Systemd) Resume() {
	if w.depth == 0 {
		w.logger.Warn("watchdog resume without suspend")
		return
	}
	w.depth--
	if !w.Enabled() || w.depth > 0 {
		return
	}
	w.send(usec(w.interval))
	w.send(daemon.SdNotifyWatchdog)
	w.logger.Debug("watchdog resumed", "timeout", w.interval)
}

func (w *Systemd) send(state string) {
	if _, err := w.notify(state); err != nil {
		w.logger.Warn("sd_notify failed", "state", state, "error", err)
	}
}

func usec(d time.Duration) string {
	return fmt.Sprintf("WATCHDOG_USEC=%d", d.Microseconds())
}
