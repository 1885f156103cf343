// Package metrics defines the Prometheus collectors for ingestion and
// resolution and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for streamtop.
type Metrics struct {
	RecordsScanned   prometheus.Counter
	RecordsMalformed prometheus.Counter
	RecordsRetained  prometheus.Counter
	RecordsDiscarded prometheus.Counter
	HeapSize         prometheus.Gauge
	LinesResolved    prometheus.Counter
	ResolveErrors    *prometheus.CounterVec
	PassDuration     prometheus.Histogram
}

// New creates and registers all collectors with the given registerer. Pass
// prometheus.DefaultRegisterer in binaries; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamtop_records_scanned_total",
			Help: "Total input records scanned during ingestion.",
		}),
		RecordsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamtop_records_malformed_total",
			Help: "Input lines skipped because they did not parse as payload/score.",
		}),
		RecordsRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamtop_records_retained_total",
			Help: "Records accepted into the candidate heap.",
		}),
		RecordsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamtop_records_discarded_total",
			Help: "Records rejected for not beating the current minimum score.",
		}),
		HeapSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamtop_heap_size",
			Help: "Number of candidates currently retained.",
		}),
		LinesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamtop_lines_resolved_total",
			Help: "Offsets resolved back to source text.",
		}),
		ResolveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtop_resolve_errors_total",
			Help: "Resolution failures by kind (seek, decode, io).",
		}, []string{"kind"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamtop_pass_duration_seconds",
			Help:    "Wall-clock duration of a full ranking pass.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}

	reg.MustRegister(
		m.RecordsScanned,
		m.RecordsMalformed,
		m.RecordsRetained,
		m.RecordsDiscarded,
		m.HeapSize,
		m.LinesResolved,
		m.ResolveErrors,
		m.PassDuration,
	)
	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
