package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoreComputationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openscore_computations_total",
		Help: "Total number of completed score computations.",
	})

	scoreComputationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openscore_computation_failures_total",
		Help: "Score computation failures by pipeline stage.",
	}, []string{"stage"})

	scorePublicationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openscore_publications_total",
		Help: "Total number of confirmed on-chain factor publications.",
	})

	scorePublicationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openscore_publication_failures_total",
		Help: "Total number of failed on-chain factor publications.",
	})

	extractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "openscore_extraction_duration_seconds",
		Help:    "Wall time of the concurrent six-factor extraction fan-out.",
		Buckets: prometheus.DefBuckets,
	})
)
