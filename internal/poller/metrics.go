package poller

import "github.com/prometheus/client_golang/prometheus"

var (
	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_poll_ticks_total",
			Help: "Poll cycles run",
		},
	)
	syncFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_poll_sync_failures_total",
			Help: "Device syncs that failed",
		},
	)
	publishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_poll_publish_failures_total",
			Help: "Telemetry publishes that failed and were left dirty",
		},
	)
	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_poll_persist_failures_total",
			Help: "Setpoint writes that failed",
		},
	)
	dirtyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_poll_dirty",
			Help: "1 while a state change is waiting to be published",
		},
	)
)

// MetricsCollectors returns collectors for the poller module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ticks,
		syncFailures,
		publishFailures,
		persistFailures,
		dirtyGauge,
	}
}
