package lod

import "github.com/prometheus/client_golang/prometheus"

var (
	switchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "lod",
			Name:      "switches_total",
			Help:      "Representation switches across all objects",
		},
	)

	trianglesActiveGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "lod",
			Name:      "triangles_active",
			Help:      "Triangles in the currently active representation set",
		},
	)

	trianglesBudgetGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "lod",
			Name:      "triangles_budget",
			Help:      "Triangle budget imposed by the active quality tier",
		},
	)
)

func init() {
	prometheus.MustRegister(switchesTotal, trianglesActiveGauge, trianglesBudgetGauge)
}
