package setpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Backend reads and writes raw records by slot.
type Backend interface {
	// Read returns the record in slot. ok is false if the slot was never written.
	Read(ctx context.Context, slot Slot) (data []byte, ok bool, err error)

	// Write replaces the record in slot. It returns once the data is durable.
	Write(ctx context.Context, slot Slot, data []byte) error

	Close() error
}

// Logger defines the logging interface for the store.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type entry struct {
	value float32
	set   bool
}

// Store holds the three setpoint records of one device. Load and Snapshot
// are safe to call while the scheduler saves.
type Store struct {
	base    uint32
	backend Backend
	logger  Logger

	mu     sync.RWMutex
	values map[Mode]entry
}

// NewStore creates a store for deviceID on backend. Call Open before use.
func NewStore(deviceID string, backend Backend) *Store {
	return &Store{
		base:    BaseHash(deviceID),
		backend: backend,
		values:  make(map[Mode]entry, len(Modes)),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Slot returns the storage slot of mode.
func (s *Store) Slot(mode Mode) Slot {
	return SlotFor(s.base, mode)
}

// Open loads every record from the backend. An unreadable record is logged
// and treated as never set; a backend failure is returned as ErrReadFailed.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mode := range Modes {
		data, ok, err := s.backend.Read(ctx, s.Slot(mode))
		if err != nil {
			return fmt.Errorf("%w: %s slot %d: %w", ErrReadFailed, mode, s.Slot(mode), err)
		}
		if !ok {
			s.values[mode] = entry{}
			continue
		}
		v, err := decodeValue(data)
		if err != nil {
			s.logger.Warn("discarding unreadable setpoint", "mode", mode.String(), "error", err)
			s.values[mode] = entry{}
			continue
		}
		s.values[mode] = entry{value: v, set: true}
	}
	return nil
}

// Load returns the stored value for mode. ok is false when the mode has
// never been set; callers must not substitute a default.
func (s *Store) Load(mode Mode) (value float32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.values[mode]
	return e.value, e.set
}

// Save persists value for mode. Saving the value already stored performs no
// backend write. NaN and infinite values are rejected with ErrInvalidValue.
// On failure the previous value is kept and ErrWriteFailed
// is returned.
func (s *Store) Save(ctx context.Context, mode Mode, value float32) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, uint8(mode))
	}
	if !finite(value) {
		return fmt.Errorf("%w: %s %v", ErrInvalidValue, mode, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.values[mode]; e.set && e.value == value {
		return nil
	}

	if err := s.backend.Write(ctx, s.Slot(mode), encodeValue(value)); err != nil {
		writeFailures.WithLabelValues(mode.String()).Inc()
		if errors.Is(err, ErrWriteFailed) {
			return err
		}
		return fmt.Errorf("%w: %s slot %d: %w", ErrWriteFailed, mode, s.Slot(mode), err)
	}

	writes.WithLabelValues(mode.String()).Inc()
	s.values[mode] = entry{value: value, set: true}
	s.logger.Info("setpoint saved", "mode", mode.String(), "value", value)
	return nil
}

// Snapshot returns copies of all records in slot order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(Modes))
	for _, mode := range Modes {
		e := s.values[mode]
		out = append(out, Record{Mode: mode, Slot: s.Slot(mode), Value: e.value, Set: e.set})
	}
	return out
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
