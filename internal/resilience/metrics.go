package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors, labelled by upstream target.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Current breaker state per upstream: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_transition_total",
			Help: "Breaker state transitions per upstream.",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_open_total",
			Help: "Times a breaker tripped open.",
		},
		[]string{"target"},
	)
	UpstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retry_total",
			Help: "Retried upstream requests by method.",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, UpstreamRetries)
}
