package bundle

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "bundle",
			Name:      "loads_total",
			Help:      "Bundle load sessions by terminal outcome",
		},
		[]string{"outcome"},
	)

	activeSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "bundle",
			Name:      "active_sessions",
			Help:      "Bundle load sessions currently in flight",
		},
	)

	assetsLoadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "bundle",
			Name:      "assets_loaded_total",
			Help:      "Individual assets completed across all bundles",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, activeSessionsGauge, assetsLoadedTotal)
}
