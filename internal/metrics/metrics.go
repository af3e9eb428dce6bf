// Package metrics holds the Prometheus collectors for ingestion and queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	ChunksCreated      prometheus.Counter
	IngestionDuration  prometheus.Histogram
	ActiveIngestions   prometheus.Gauge
	StaleVectorsPruned prometheus.Counter

	Queries         *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	QueryMatchCount prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_documents_processed_total",
			Help: "Documents processed, by outcome code",
		}, []string{"code"}),
		ChunksCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "docchat_chunks_created_total",
			Help: "Chunks embedded and indexed",
		}),
		IngestionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_ingestion_duration_seconds",
			Help:    "Duration of document ingestion",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		ActiveIngestions: f.NewGauge(prometheus.GaugeOpts{
			Name: "docchat_active_ingestions",
			Help: "Ingestions currently running",
		}),
		StaleVectorsPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "docchat_stale_vectors_pruned_total",
			Help: "Vectors removed because a re-ingest produced fewer chunks",
		}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_queries_total",
			Help: "Chat queries, by outcome code",
		}, []string{"code"}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_query_duration_seconds",
			Help:    "Duration of chat queries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		QueryMatchCount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_query_matches",
			Help:    "Vector matches returned per query",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		}),
	}
}

// IngestionStarted marks an ingestion as running and returns a func that
// records its outcome.
func (m *Metrics) IngestionStarted() func(code string, chunks int) {
	if m == nil {
		return func(string, int) {}
	}
	start := time.Now()
	m.ActiveIngestions.Inc()
	return func(code string, chunks int) {
		m.ActiveIngestions.Dec()
		m.IngestionDuration.Observe(time.Since(start).Seconds())
		m.DocumentsProcessed.WithLabelValues(code).Inc()
		m.ChunksCreated.Add(float64(chunks))
	}
}

func (m *Metrics) StaleVectors(n int) {
	if m == nil {
		return
	}
	m.StaleVectorsPruned.Add(float64(n))
}

// QueryStarted returns a func that records a finished query.
func (m *Metrics) QueryStarted() func(code string, matches int) {
	if m == nil {
		return func(string, int) {}
	}
	start := time.Now()
	return func(code string, matches int) {
		m.QueryDuration.Observe(time.Since(start).Seconds())
		m.Queries.WithLabelValues(code).Inc()
		m.QueryMatchCount.Observe(float64(matches))
	}
}
