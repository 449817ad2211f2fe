package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_session_state",
			Help: "Broker session state (0=disconnected, 1=connecting, 2=connected, 3=failed)",
		},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudlink_session_connect_attempts_total",
			Help: "Broker connect attempts by result",
		},
		[]string{"result"},
	)
	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudlink_session_publish_total",
			Help: "Telemetry publishes by result",
		},
		[]string{"result"},
	)
	reauths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_session_reauth_total",
			Help: "Reconnects made to present a fresh bearer token",
		},
	)
	connectionsLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudlink_session_connection_lost_total",
			Help: "Broker connections lost while connected",
		},
	)
	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudlink_session_inbound_total",
			Help: "Inbound control messages by outcome",
		},
		[]string{"outcome"},
	)
)

// MetricsCollectors returns collectors for the session module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		sessionState,
		connectAttempts,
		publishes,
		reauths,
		connectionsLost,
		inboundMessages,
	}
}
