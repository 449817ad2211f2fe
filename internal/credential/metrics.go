package credential

import "github.com/prometheus/client_golang/prometheus"

var (
	tokenRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_token_refresh_total",
			Help: "Bearer tokens signed",
		},
	)
	tokenSignFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_token_sign_failure_total",
			Help: "Bearer token signing failures",
		},
	)
	tokenExpiry = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_token_expiry_timestamp_seconds",
			Help: "Expiry of the current bearer token (unix seconds)",
		},
	)
)

// MetricsCollectors returns collectors for the credential module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		tokenRefreshes,
		tokenSignFailures,
		tokenExpiry,
	}
}
