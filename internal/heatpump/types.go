package heatpump

import (
	"context"
	"fmt"
)

// Mode is the operating mode of the unit.
type Mode string

// Operating modes.
const (
	ModeOff  Mode = "off"
	ModeCool Mode = "cool"
	ModeHeat Mode = "heat"
	ModeAuto Mode = "auto"
	ModeDry  Mode = "dry"
	ModeFan  Mode = "fan_only"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeCool, ModeHeat, ModeAuto, ModeDry, ModeFan:
		return true
	}
	return false
}

// Temperature limits accepted by the unit, in degrees Celsius.
const (
	MinTargetTemperature = 16.0
	MaxTargetTemperature = 31.0
)

// Settings are the user-controllable parameters of the unit.
type Settings struct {
	Mode              Mode    `json:"mode"`
	TargetTemperature float64 `json:"target_temperature"`
	Fan               string  `json:"fan,omitempty"`
	Vane              string  `json:"vane,omitempty"`
}

// Validate checks the settings against the unit's limits.
func (s Settings) Validate() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
	}
	// Written as a negated range so NaN is rejected.
	if !(s.TargetTemperature >= MinTargetTemperature && s.TargetTemperature <= MaxTargetTemperature) {
		return fmt.Errorf("%w: target temperature %.1f outside [%.0f, %.0f]",
			ErrInvalidSettings, s.TargetTemperature, MinTargetTemperature, MaxTargetTemperature)
	}
	return nil
}

// Status is what the unit reports about itself.
type Status struct {
	RoomTemperature     float64 `json:"room_temperature"`
	Operating           bool    `json:"operating"`
	CompressorFrequency int     `json:"compressor_frequency"`
}

// Snapshot is the device state observed by one Sync call.
type Snapshot struct {
	Settings Settings `json:"settings"`
	Status   Status   `json:"status"`
}

// Driver is the device-driver boundary.
type Driver interface {
	// Sync exchanges one round of packets with the unit and returns its state.
	Sync(ctx context.Context) (Snapshot, error)

	// Apply requests new settings. They take effect on a later Sync.
	Apply(ctx context.Context, s Settings) error

	// SetRemoteTemperature feeds an external sensor reading to the unit.
	// Zero switches back to the internal sensor.
	SetRemoteTemperature(ctx context.Context, celsius float64) error

	// Close releases the driver's link to the unit.
	Close() error
}

// Notifier is implemented by drivers that can report changes as they are
// detected during Sync.
type Notifier interface {
	OnSettingsChanged(fn func(Settings))
	OnStatusChanged(fn func(Status))
}
