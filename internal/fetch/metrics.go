package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Underlying HTTP attempts by outcome",
		},
		[]string{"outcome"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Retries scheduled after a retryable failure",
		},
	)

	breakerOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetd",
			Subsystem: "fetch",
			Name:      "breaker_open_total",
			Help:      "Calls rejected because the endpoint breaker was open",
		},
		[]string{"endpoint"},
	)

	breakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "assetd",
			Subsystem: "fetch",
			Name:      "breaker_state",
			Help:      "Breaker state per endpoint (0=closed, 1=half-open, 2=open)",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(attemptsTotal, retriesTotal, breakerOpenTotal, breakerStateGauge)
}
