package poller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
	"github.com/nerrad567/gray-logic-cloudlink/internal/setpoint"
)

// Session is the part of the broker session the scheduler drives.
type Session interface {
	State() session.State
	Connect(ctx context.Context) error
	DrainInbound(ctx context.Context) int
}

// Publisher sends one snapshot as telemetry.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap heatpump.Snapshot, now time.Time) error
}

// SetpointStore persists per-mode setpoints.
type SetpointStore interface {
	Load(mode setpoint.Mode) (float32, bool)
	Save(ctx context.Context, mode setpoint.Mode, value float32) error
}

// Observer is told the settings of every synced snapshot.
type Observer interface {
	Observe(s heatpump.Settings)
}

// Kicker is fed once per completed tick.
type Kicker interface {
	Kick()
}

// Logger defines the logging interface for the scheduler.
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

type noopKicker struct{}

func (noopKicker) Kick() {}

// Options wires a Scheduler. Control and Watchdog are optional.
type Options struct {
	Interval  time.Duration
	Driver    heatpump.Driver
	Detector  ChangeDetector
	Session   Session
	Publisher Publisher
	Store     SetpointStore
	Control   Observer
	Watchdog  Kicker
}

// Scheduler runs the poll cycle. All of its work happens on the goroutine
// calling Tick or Run.
type Scheduler struct {
	opts   Options
	logger Logger

	dirty bool
	fatal error
}

// NewScheduler validates opts and creates a scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 || opts.Interval > config.MaxPollIntervalMS*time.Millisecond {
		return nil, fmt.Errorf("%w: %v not in (0, %dms]", ErrInvalidInterval, opts.Interval, config.MaxPollIntervalMS)
	}
	if opts.Driver == nil || opts.Detector == nil || opts.Session == nil || opts.Publisher == nil || opts.Store == nil {
		return nil, errors.New("poller: driver, detector, session, publisher and store are required")
	}
	if opts.Watchdog == nil {
		opts.Watchdog = noopKicker{}
	}
	return &Scheduler{opts: opts, logger: noopLogger{}}, nil
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Tick runs one poll cycle at now. It returns an error wrapping
// ErrNonOperational once the session could not be connected; every later
// call returns the same error without doing any work.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if s.fatal != nil {
		return s.fatal
	}
	ticks.Inc()

	snap, err := s.opts.Driver.Sync(ctx)
	synced := err == nil
	if err != nil {
		syncFailures.Inc()
		s.logger.Warn("device sync failed", "error", err)
	} else {
		heatpump.RecordSnapshot(snap)
		if s.opts.Control != nil {
			s.opts.Control.Observe(snap.Settings)
		}
	}

	if s.opts.Session.State() != session.StateConnected {
		if err := s.opts.Session.Connect(ctx); err != nil {
			s.fatal = fmt.Errorf("%w: %w", ErrNonOperational, err)
			s.logger.Error("broker connect failed, device non-operational", "error", err)
			return s.fatal
		}
	}

	if n := s.opts.Session.DrainInbound(ctx); n > 0 {
		s.logger.Debug("applied control messages", "count", n)
	}

	if !synced {
		return nil
	}

	s.persist(ctx, snap)

	if _, changed := s.opts.Detector.Poll(snap); changed {
		s.setDirty(true)
	}
	if !s.dirty {
		return nil
	}

	if err := s.opts.Publisher.PublishSnapshot(ctx, snap, now); err != nil {
		publishFailures.Inc()
		s.logger.Warn("telemetry publish failed, retrying next tick", "error", err)
		return nil
	}
	s.setDirty(false)
	return nil
}

// persist saves the snapshot's target temperature under its mode when it
// differs from the stored value. Failures are logged only.
func (s *Scheduler) persist(ctx context.Context, snap heatpump.Snapshot) {
	mode, err := setpoint.ParseMode(string(snap.Settings.Mode))
	if err != nil {
		// off, dry and fan_only have no setpoint slot.
		return
	}
	value := float32(snap.Settings.TargetTemperature)
	if math.IsNaN(float64(value)) || math.IsInf(float64(value), 0) {
		// Target not reported yet.
		return
	}
	if stored, ok := s.opts.Store.Load(mode); ok && stored == value {
		return
	}
	if err := s.opts.Store.Save(ctx, mode, value); err != nil {
		persistFailures.Inc()
		s.logger.Warn("setpoint not persisted",
			"mode", mode.String(),
			"value", value,
			"error", err,
		)
	}
}

func (s *Scheduler) setDirty(dirty bool) {
	s.dirty = dirty
	if dirty {
		dirtyGauge.Set(1)
	} else {
		dirtyGauge.Set(0)
	}
}

// Run ticks immediately and then once per interval until ctx is done or
// the device becomes non-operational. The watchdog is kicked after every
// completed tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("poll loop started", "interval", s.opts.Interval)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx, time.Now()); err != nil {
			return err
		}
		s.opts.Watchdog.Kick()

		select {
		case <-ctx.Done():
			s.logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}
