package lifecycle

import "github.com/prometheus/client_golang/prometheus"

var (
	resourcesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "lifecycle",
			Name:      "resources",
			Help:      "Currently tracked resources",
		},
	)

	releasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "lifecycle",
			Name:      "releases_total",
			Help:      "Resources released successfully",
		},
	)

	releaseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "lifecycle",
			Name:      "release_failures_total",
			Help:      "Resource releases that returned an error",
		},
	)
)

func init() {
	prometheus.MustRegister(resourcesGauge, releasesTotal, releaseFailuresTotal)
}
