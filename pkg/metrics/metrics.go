// Package metrics defines the Prometheus collectors for a loader run and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the loader.
type Metrics struct {
	LinesTotal         *prometheus.CounterVec
	RecordsTotal       prometheus.Counter
	EnrichSkippedTotal prometheus.Counter
	SchemaChangesTotal prometheus.Counter
	ChunksTotal        *prometheus.CounterVec
	ItemsFailedTotal   prometheus.Counter
	SubmitDuration     prometheus.Histogram
	ChunkSize          prometheus.Histogram
	SchemaFieldCount   prometheus.Gauge
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them through Handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loader_lines_total",
				Help: "Input lines read, by kind (blank, comment, data).",
			},
			[]string{"kind"},
		),
		RecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_records_total",
				Help: "Records decoded from data lines.",
			},
		),
		EnrichSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_enrich_skipped_total",
				Help: "Records whose enrichment was skipped because the source field was missing.",
			},
		),
		SchemaChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_schema_changes_total",
				Help: "#Fields: headers observed.",
			},
		),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loader_chunks_total",
				Help: "Bulk chunks submitted, by status (ok, rejected, error).",
			},
			[]string{"status"},
		),
		ItemsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loader_items_failed_total",
				Help: "Documents the sink reported as failed.",
			},
		),
		SubmitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loader_submit_duration_seconds",
				Help:    "Bulk submission latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		ChunkSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loader_chunk_documents",
				Help:    "Documents per submitted chunk.",
				Buckets: []float64{1, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		SchemaFieldCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loader_schema_fields",
				Help: "Number of fields in the active schema.",
			},
		),
	}

	reg.MustRegister(
		m.LinesTotal,
		m.RecordsTotal,
		m.EnrichSkippedTotal,
		m.SchemaChangesTotal,
		m.ChunksTotal,
		m.ItemsFailedTotal,
		m.SubmitDuration,
		m.ChunkSize,
		m.SchemaFieldCount,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
