package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus collectors on a private
// registry, so multiple servers in one process (or test) never collide.
type metrics struct {
	registry       *prometheus.Registry
	ingestAttempts *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,
		ingestAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expensit_ingest_attempts_total",
			Help: "Receipt ingestion attempts by outcome.",
		}, []string{"outcome"}),
		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "expensit_ingest_duration_seconds",
			Help:    "Wall time of receipt ingestion attempts.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
