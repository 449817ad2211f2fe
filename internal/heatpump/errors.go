package heatpump

import "errors"

var (
	// ErrNotConnected is returned when the driver has no link to the unit.
	ErrNotConnected = errors.New("heatpump: not connected")

	// ErrInvalidSettings is returned when requested settings are out of range.
	ErrInvalidSettings = errors.New("heatpump: invalid settings")
)
