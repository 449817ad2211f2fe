package poller

import "errors"

var (
	// ErrNonOperational is returned once the device can no longer operate
	// in this run. Only an external restart recovers it.
	ErrNonOperational = errors.New("poller: device non-operational")

	// ErrInvalidInterval is returned for a poll interval outside (0, 9s].
	ErrInvalidInterval = errors.New("poller: invalid poll interval")

	// ErrDetectorUnsupported is returned when the driver cannot feed the
	// requested change detector.
	ErrDetectorUnsupported = errors.New("poller: change detector not supported by driver")
)
