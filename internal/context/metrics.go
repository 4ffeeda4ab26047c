package context

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "braind",
			Subsystem: "context",
			Name:      "build_duration_seconds",
			Help:      "Duration of BuildContext calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	buildTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braind",
			Subsystem: "context",
			Name:      "build_total",
			Help:      "Total BuildContext calls by outcome",
		},
		[]string{"outcome"},
	)

	latencyBreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "braind",
			Subsystem: "context",
			Name:      "latency_budget_breach_total",
			Help:      "Number of BuildContext calls exceeding the 500ms latency budget",
		},
	)
)
