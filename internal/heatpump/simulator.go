package heatpump

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Simulator is an in-memory Driver. Each Sync moves the room temperature
// one Step towards the target while the unit is on.
type Simulator struct {
	mu sync.Mutex

	settings Settings
	pending  *Settings
	status   Status
	remote   float64
	closed   bool

	// Step is the temperature change per Sync in degrees.
	Step float64

	// FailSync makes the next Sync calls fail while set.
	FailSync error

	onSettings func(Settings)
	onStatus   func(Status)
}

// NewSimulator creates a simulator at the given room temperature.
func NewSimulator(initial Settings, roomTemperature float64) *Simulator {
	return &Simulator{
		settings: initial,
		status:   Status{RoomTemperature: roomTemperature},
		Step:     0.5,
	}
}

// OnSettingsChanged implements Notifier.
func (s *Simulator) OnSettingsChanged(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSettings = fn
}

// OnStatusChanged implements Notifier.
func (s *Simulator) OnStatusChanged(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Sync implements Driver.
func (s *Simulator) Sync(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrNotConnected
	}
	if s.FailSync != nil {
		err := s.FailSync
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("sync: %w", err)
	}

	settingsChanged := false
	if s.pending != nil {
		settingsChanged = *s.pending != s.settings
		s.settings = *s.pending
		s.pending = nil
	}

	prevStatus := s.status
	s.advance()
	statusChanged := s.status != prevStatus

	snap := Snapshot{Settings: s.settings, Status: s.status}
	onSettings, onStatus := s.onSettings, s.onStatus
	s.mu.Unlock()

	// Callbacks run outside the lock so they may call back into the simulator.
	if settingsChanged && onSettings != nil {
		onSettings(snap.Settings)
	}
	if statusChanged && onStatus != nil {
		onStatus(snap.Status)
	}
	return snap, nil
}

// advance moves the room temperature towards the target. Must hold mu.
func (s *Simulator) advance() {
	room := s.status.RoomTemperature
	if s.remote != 0 {
		room = s.remote
	}

	target := s.settings.TargetTemperature
	var want float64
	switch s.settings.Mode {
	case ModeHeat:
		want = math.Max(room, target)
	case ModeCool, ModeDry:
		want = math.Min(room, target)
	case ModeAuto:
		want = target
	default:
		want = room
	}

	diff := want - room
	switch {
	case math.Abs(diff) <= s.Step:
		s.status.RoomTemperature = want
		s.status.Operating = false
		s.status.CompressorFrequency = 0
	case diff > 0:
		s.status.RoomTemperature = room + s.Step
		s.status.Operating = true
		s.status.CompressorFrequency = 40
	default:
		s.status.RoomTemperature = room - s.Step
		s.status.Operating = true
		s.status.CompressorFrequency = 40
	}
}

// Apply implements Driver.
func (s *Simulator) Apply(_ context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	s.pending = &settings
	return nil
}

// SetRemoteTemperature implements Driver.
func (s *Simulator) SetRemoteTemperature(_ context.Context, celsius float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	s.remote = celsius
	return nil
}

// Settings returns the settings currently in effect.
func (s *Simulator) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Close implements Driver.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
