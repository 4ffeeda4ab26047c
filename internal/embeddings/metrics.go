package embeddings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for embedding generation: namespace/subsystem
// labeling, duration histograms, result-labeled counters.
var (
	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "braind",
			Subsystem: "embeddings",
			Name:      "generation_duration_seconds",
			Help:      "Duration of embedding generation calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braind",
			Subsystem: "embeddings",
			Name:      "generations_total",
			Help:      "Total embedding generation attempts by result",
		},
		[]string{"result"},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "braind",
			Subsystem: "embeddings",
			Name:      "batch_size",
			Help:      "Number of texts per embedding batch call",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)
)

func recordResult(result string) {
	generationTotal.WithLabelValues(result).Inc()
}
