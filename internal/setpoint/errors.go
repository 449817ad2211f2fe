package setpoint

import "errors"

// Domain errors for the setpoint package.
var (
	// ErrWriteFailed is returned when a record could not be persisted.
	// The in-memory value is left unchanged so the next save retries.
	ErrWriteFailed = errors.New("setpoint: write failed")

	// ErrReadFailed is returned when stored records cannot be read at all.
	ErrReadFailed = errors.New("setpoint: read failed")

	// ErrInvalidMode is returned for a mode without a setpoint slot.
	ErrInvalidMode = errors.New("setpoint: invalid mode")

	// ErrInvalidValue is returned for NaN or infinite setpoints, which
	// cannot be read back from a record.
	ErrInvalidValue = errors.New("setpoint: invalid value")
)
