// Package metrics exposes prometheus collectors for query traffic and
// generation bookkeeping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_explorer_queries_total",
		Help: "Queries issued to the analytical execution service",
	}, []string{"kind", "status"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survey_explorer_query_duration_seconds",
		Help:    "Round-trip time of analytical queries",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"kind"})

	generationsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_explorer_generations_issued_total",
		Help: "Filter/pivot generations issued",
	})

	generationsStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_explorer_generations_stale_total",
		Help: "Generations whose results were discarded because a newer one was issued",
	})
)

// ObserveQuery records one query round-trip.
func ObserveQuery(kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	queryTotal.WithLabelValues(kind, status).Inc()
	queryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func GenerationIssued() { generationsIssued.Inc() }

func GenerationStale() { generationsStale.Inc() }
