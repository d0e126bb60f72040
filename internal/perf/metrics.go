package perf

import "github.com/prometheus/client_golang/prometheus"

var (
	tierGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "perf",
			Name:      "quality_tier",
			Help:      "Current quality tier (2=high, 1=medium, 0=low)",
		},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "perf",
			Name:      "tier_transitions_total",
			Help:      "Quality tier transitions by direction",
		},
		[]string{"from", "to"},
	)

	fpsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "perf",
			Name:      "fps",
			Help:      "Most recently sampled frames per second",
		},
	)

	memoryPressureGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "perf",
			Name:      "memory_pressure",
			Help:      "Most recently sampled memory pressure (used/limit)",
		},
	)

	contextLossTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "perf",
			Name:      "context_losses_total",
			Help:      "GPU context loss events",
		},
	)
)

func init() {
	prometheus.MustRegister(
		tierGauge,
		transitionsTotal,
		fpsGauge,
		memoryPressureGauge,
		contextLossTotal,
	)
}
