package heatpump

import "github.com/prometheus/client_golang/prometheus"

var (
	roomTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_heatpump_room_temperature_celsius",
			Help: "Room temperature reported by the unit",
		},
	)
	targetTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_heatpump_target_temperature_celsius",
			Help: "Target temperature currently in effect",
		},
	)
	operating = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudlink_heatpump_operating",
			Help: "Whether the compressor is running (1=yes, 0=no)",
		},
	)
	mode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudlink_heatpump_mode",
			Help: "Operating mode (1=active)",
		},
		[]string{"mode"},
	)
)

// RecordSnapshot updates the unit gauges from a snapshot.
func RecordSnapshot(s Snapshot) {
	roomTemperature.Set(s.Status.RoomTemperature)
	targetTemperature.Set(s.Settings.TargetTemperature)
	if s.Status.Operating {
		operating.Set(1)
	} else {
		operating.Set(0)
	}
	for _, m := range []Mode{ModeOff, ModeCool, ModeHeat, ModeAuto, ModeDry, ModeFan} {
		v := 0.0
		if m == s.Settings.Mode {
			v = 1
		}
		mode.WithLabelValues(string(m)).Set(v)
	}
}

// MetricsCollectors returns collectors for the heatpump module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		roomTemperature,
		targetTemperature,
		operating,
		mode,
	}
}
