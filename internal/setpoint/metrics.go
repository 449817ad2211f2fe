package setpoint

import "github.com/prometheus/client_golang/prometheus"

var (
	writes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudlink_setpoint_writes_total",
			Help: "Setpoint records persisted",
		},
		[]string{"mode"},
	)
	writeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudlink_setpoint_write_failures_total",
			Help: "Setpoint records that failed to persist",
		},
		[]string{"mode"},
	)
)

// MetricsCollectors returns collectors for the setpoint module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		writes,
		writeFailures,
	}
}
