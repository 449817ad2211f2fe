package influxdb

import "errors"

// Sentinel errors for the telemetry mirror. Mirror writes are asynchronous,
// so only Connect and HealthCheck return these directly:
//
//	client.SetOnError(func(err error) {
//	    if errors.Is(err, influxdb.ErrWriteFailed) {
//	        // mirror lost a point; the broker publish already succeeded
//	    }
//	})
var (
	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the startup ping failed or the server
	// reported itself unhealthy. The agent treats this as a setup failure.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps batch write errors delivered through the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: mirror disabled")
)
