package setpoint

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// Mode selects one of the persisted setpoints. The numeric value is the
// slot offset and must never change.
type Mode uint8

// Setpoint modes.
const (
	ModeCool Mode = 1
	ModeHeat Mode = 2
	ModeAuto Mode = 3
)

// Modes lists every mode in slot order.
var Modes = []Mode{ModeCool, ModeHeat, ModeAuto}

func (m Mode) String() string {
	switch m {
	case ModeCool:
		return "cool"
	case ModeHeat:
		return "heat"
	case ModeAuto:
		return "auto"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m has a slot.
func (m Mode) Valid() bool {
	return m >= ModeCool && m <= ModeAuto
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Slot is the stable storage address of one record.
type Slot uint32

// BaseHash derives the slot base from a stable device identifier.
func BaseHash(deviceID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return h.Sum32()
}

// SlotFor returns the slot of mode under base. Arithmetic wraps like the
// preference store's uint32 keys.
func SlotFor(base uint32, mode Mode) Slot {
	return Slot(base + uint32(mode))
}

// RecordSize is the length of an encoded record.
const RecordSize = 4

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func encodeValue(v float32) []byte {
	b := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func decodeValue(b []byte) (float32, error) {
	if len(b) != RecordSize {
		return 0, fmt.Errorf("record is %d bytes, want %d", len(b), RecordSize)
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(b))
	if !finite(v) {
		return 0, fmt.Errorf("record holds non-finite value")
	}
	return v, nil
}

// Record is a point-in-time copy of one setpoint.
type Record struct {
	Mode  Mode    `json:"mode"`
	Slot  Slot    `json:"slot"`
	Value float32 `json:"value"`
	Set   bool    `json:"set"`
}
