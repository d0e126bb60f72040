package loader

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "cache_hits_total",
			Help:      "Loads served from the asset cache",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "cache_misses_total",
			Help:      "Loads that went to the network",
		},
	)

	dedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "deduped_total",
			Help:      "Loads that joined an already in-flight fetch",
		},
	)

	decodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "decode_failures_total",
			Help:      "Payloads rejected by the decoders",
		},
		[]string{"kind"},
	)

	cacheEntriesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "cache_entries",
			Help:      "Assets currently held by the cache",
		},
	)

	cacheBytesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "loader",
			Name:      "cache_bytes",
			Help:      "Total payload bytes held by the cache",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheHitsTotal, cacheMissesTotal, dedupedTotal,
		decodeFailuresTotal, cacheEntriesGauge, cacheBytesGauge,
	)
}
