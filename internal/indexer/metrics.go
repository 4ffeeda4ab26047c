package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the indexing pipeline, grounded on the
// teacher's vectorstore package's promauto metric style.
var (
	indexDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "braind",
			Subsystem: "indexer",
			Name:      "index_duration_seconds",
			Help:      "Duration of IndexSession calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	indexTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braind",
			Subsystem: "indexer",
			Name:      "index_total",
			Help:      "Total IndexSession attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func recordOutcome(outcome string) {
	indexTotal.WithLabelValues(outcome).Inc()
}
