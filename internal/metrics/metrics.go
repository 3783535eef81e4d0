package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Ticks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortex_lipsync_ticks_total",
			Help: "Total number of engine ticks",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_lipsync_tick_duration_seconds",
			Help:    "Wall time spent inside a single engine tick",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_lipsync_state_transitions_total",
			Help: "Total number of animation state transitions",
		},
		[]string{"from", "to"},
	)

	Amplitude = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_lipsync_amplitude",
			Help: "Most recent microphone amplitude in [0,1]",
		},
	)

	Glow = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_lipsync_glow",
			Help: "Current glow intensity in [0,1]",
		},
	)

	RigTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cortex_lipsync_rig_tier",
			Help: "Resolved rig tier of the active engine (1 for the current tier)",
		},
		[]string{"tier"},
	)

	CaptureStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_lipsync_capture_starts_total",
			Help: "Capture starts that opened a device, failed or disabled capture",
		},
		[]string{"result"},
	)

	Gestures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortex_lipsync_gestures_total",
			Help: "Total number of speech gestures triggered",
		},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_lipsync_stream_clients",
			Help: "Number of connected frame stream clients",
		},
	)

	ConfigReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cortex_lipsync_config_reloads_total",
			Help: "Total number of configuration reloads",
		},
	)
)

// SetTier marks tier as the current one and clears the others.
func SetTier(tier string, all ...string) {
	for _, t := range all {
		RigTier.WithLabelValues(t).Set(0)
	}
	RigTier.WithLabelValues(tier).Set(1)
}
