package setpoint

import (
	"context"
	"errors"
	"math"
	"testing"
)

// memBackend is an in-memory Backend that counts writes.
type memBackend struct {
	records  map[Slot][]byte
	writes   int
	writeErr error
	readErr  error
}

func newMemBackend() *memBackend {
	return &memBackend{records: make(map[Slot][]byte)}
}

func (b *memBackend) Read(_ context.Context, slot Slot) ([]byte, bool, error) {
	if b.readErr != nil {
		return nil, false, b.readErr
	}
	data, ok := b.records[slot]
	return data, ok, nil
}

func (b *memBackend) Write(_ context.Context, slot Slot, data []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	b.writes++
	b.records[slot] = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Close() error { return nil }

func openStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := NewStore("hp-01", backend)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

// =============================================================================
// Slot Tests
// =============================================================================

func TestSlots_StableAndDistinct(t *testing.T) {
	a := NewStore("hp-01", newMemBackend())
	b := NewStore("hp-01", newMemBackend())

	seen := make(map[Slot]Mode)
	for _, mode := range Modes {
		if a.Slot(mode) != b.Slot(mode) {
			t.Errorf("Slot(%s) differs between stores for the same device", mode)
		}
		if other, dup := seen[a.Slot(mode)]; dup {
			t.Errorf("Slot(%s) collides with Slot(%s)", mode, other)
		}
		seen[a.Slot(mode)] = mode
	}

	if got, want := a.Slot(ModeCool), Slot(BaseHash("hp-01")+1); got != want {
		t.Errorf("Slot(cool) = %d, want %d", got, want)
	}
}

func TestSlotFor_Wraps(t *testing.T) {
	if got := SlotFor(math.MaxUint32, ModeHeat); got != 1 {
		t.Errorf("SlotFor(MaxUint32, heat) = %d, want 1", got)
	}
}

func TestParseMode(t *testing.T) {
	for _, mode := range Modes {
		got, err := ParseMode(mode.String())
		if err != nil {
			t.Fatalf("ParseMode(%q) error = %v", mode.String(), err)
		}
		if got != mode {
			t.Errorf("ParseMode(%q) = %v, want %v", mode.String(), got, mode)
		}
	}

	for _, name := range []string{"off", "dry", "fan_only", ""} {
		if _, err := ParseMode(name); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("ParseMode(%q) error = %v, want ErrInvalidMode", name, err)
		}
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_LoadUnset(t *testing.T) {
	s := openStore(t, newMemBackend())

	for _, mode := range Modes {
		if v, ok := s.Load(mode); ok {
			t.Errorf("Load(%s) = %v, true; want unset", mode, v)
		}
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	values := []float32{16, 21.5, 23.25, 31, 0.1, -5.5}

	for _, mode := range Modes {
		for _, v := range values {
			backend := newMemBackend()
			s := openStore(t, backend)

			if err := s.Save(context.Background(), mode, v); err != nil {
				t.Fatalf("Save(%s, %v) error = %v", mode, v, err)
			}
			if got, ok := s.Load(mode); !ok || got != v {
				t.Errorf("Load(%s) = %v, %v; want %v, true", mode, got, ok, v)
			}

			// A fresh store over the same backend sees the persisted value.
			reopened := openStore(t, backend)
			if got, ok := reopened.Load(mode); !ok || got != v {
				t.Errorf("reopened Load(%s) = %v, %v; want %v, true", mode, got, ok, v)
			}
		}
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	backend := newMemBackend()
	s := openStore(t, backend)
	ctx := context.Background()

	if err := s.Save(ctx, ModeHeat, 22); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before := append([]byte(nil), backend.records[s.Slot(ModeHeat)]...)

	if err := s.Save(ctx, ModeHeat, 22); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if backend.writes != 1 {
		t.Errorf("backend writes = %d, want 1", backend.writes)
	}
	if string(backend.records[s.Slot(ModeHeat)]) != string(before) {
		t.Error("persisted record changed on identical save")
	}
}

func TestStore_ModesAreIndependent(t *testing.T) {
	s := openStore(t, newMemBackend())
	ctx := context.Background()

	_ = s.Save(ctx, ModeCool, 24)
	_ = s.Save(ctx, ModeHeat, 20)

	if v, _ := s.Load(ModeCool); v != 24 {
		t.Errorf("Load(cool) = %v, want 24", v)
	}
	if v, _ := s.Load(ModeHeat); v != 20 {
		t.Errorf("Load(heat) = %v, want 20", v)
	}
	if _, ok := s.Load(ModeAuto); ok {
		t.Error("Load(auto) set without a save")
	}
}

func TestStore_WriteFailureKeepsPreviousValue(t *testing.T) {
	backend := newMemBackend()
	s := openStore(t, backend)
	ctx := context.Background()

	if err := s.Save(ctx, ModeCool, 24); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	backend.writeErr = errors.New("flash full")
	err := s.Save(ctx, ModeCool, 25)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Save() error = %v, want ErrWriteFailed", err)
	}
	if v, _ := s.Load(ModeCool); v != 24 {
		t.Errorf("Load(cool) = %v after failed save, want 24", v)
	}

	// The retry after recovery must actually write.
	backend.writeErr = nil
	if err := s.Save(ctx, ModeCool, 25); err != nil {
		t.Fatalf("retry Save() error = %v", err)
	}
	if v, _ := s.Load(ModeCool); v != 25 {
		t.Errorf("Load(cool) = %v after retry, want 25", v)
	}
}

func TestStore_SaveInvalidMode(t *testing.T) {
	s := openStore(t, newMemBackend())

	if err := s.Save(context.Background(), Mode(7), 20); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Save() error = %v, want ErrInvalidMode", err)
	}
}

func TestStore_SaveRejectsNonFinite(t *testing.T) {
	backend := newMemBackend()
	s := openStore(t, backend)
	ctx := context.Background()

	values := []float32{
		float32(math.NaN()),
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
	}
	for _, v := range values {
		for i := 0; i < 3; i++ {
			if err := s.Save(ctx, ModeCool, v); !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Save(%v) error = %v, want ErrInvalidValue", v, err)
			}
		}
	}
	if backend.writes != 0 {
		t.Errorf("backend writes = %d, want 0", backend.writes)
	}
	if _, ok := s.Load(ModeCool); ok {
		t.Error("Load(cool) set after rejected saves")
	}

	// A finite value still round-trips through a reopen.
	if err := s.Save(ctx, ModeCool, 18.5); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reopened := openStore(t, backend)
	if v, ok := reopened.Load(ModeCool); !ok || v != 18.5 {
		t.Errorf("Load(cool) after reopen = %v, %v; want 18.5, true", v, ok)
	}
}

func TestStore_OpenReadFailure(t *testing.T) {
	backend := newMemBackend()
	backend.readErr = errors.New("bus error")

	err := NewStore("hp-01", backend).Open(context.Background())
	if !errors.Is(err, ErrReadFailed) {
		t.Errorf("Open() error = %v, want ErrReadFailed", err)
	}
}

func TestStore_OpenDiscardsMalformedRecord(t *testing.T) {
	backend := newMemBackend()
	s := NewStore("hp-01", backend)
	backend.records[s.Slot(ModeAuto)] = []byte{1, 2, 3}
	backend.records[s.Slot(ModeHeat)] = encodeValue(float32(math.NaN()))
	backend.records[s.Slot(ModeCool)] = encodeValue(23)

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := s.Load(ModeAuto); ok {
		t.Error("short record loaded as set")
	}
	if _, ok := s.Load(ModeHeat); ok {
		t.Error("NaN record loaded as set")
	}
	if v, ok := s.Load(ModeCool); !ok || v != 23 {
		t.Errorf("Load(cool) = %v, %v; want 23, true", v, ok)
	}
}

func TestStore_Snapshot(t *testing.T) {
	s := openStore(t, newMemBackend())
	_ = s.Save(context.Background(), ModeHeat, 21)

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(snap))
	}
	if snap[0].Mode != ModeCool || snap[0].Set {
		t.Errorf("snap[0] = %+v, want unset cool", snap[0])
	}
	if snap[1].Mode != ModeHeat || !snap[1].Set || snap[1].Value != 21 {
		t.Errorf("snap[1] = %+v, want heat=21", snap[1])
	}
	if snap[1].Slot != s.Slot(ModeHeat) {
		t.Errorf("snap[1].Slot = %d, want %d", snap[1].Slot, s.Slot(ModeHeat))
	}
}
