package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for resolve calls.
const (
	OutcomeHit      = "hit"
	OutcomeExisting = "existing"
	OutcomeUploaded = "uploaded"
	OutcomeNotFound = "not_found"
)

// Metrics holds the collectors reported by the attachment resolver.
type Metrics struct {
	resolves       *prometheus.CounterVec
	indexLoads     *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	indexSize      *prometheus.GaugeVec
}

// New registers the collectors with reg. A nil reg skips registration,
// which keeps tests free of global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "featured_media",
				Subsystem: "resolver",
				Name:      "resolves_total",
				Help:      "Resolve calls by reference kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		indexLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "featured_media",
				Subsystem: "resolver",
				Name:      "index_loads_total",
				Help:      "Whole-table index loads from the catalog.",
			},
			[]string{"status"},
		),
		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "featured_media",
				Subsystem: "resolver",
				Name:      "upload_duration_seconds",
				Help:      "Time spent fetching and storing a remote image.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		indexSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "featured_media",
				Subsystem: "resolver",
				Name:      "index_entries",
				Help:      "Entries currently held by each in-memory index.",
			},
			[]string{"index"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.resolves, m.indexLoads, m.uploadDuration, m.indexSize)
	}
	return m
}

func (m *Metrics) ObserveResolve(kind, outcome string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveIndexLoad(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.indexLoads.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveUpload(d time.Duration) {
	if m == nil {
		return
	}
	m.uploadDuration.Observe(d.Seconds())
}

func (m *Metrics) SetIndexSize(canonical, source int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues("canonical_url").Set(float64(canonical))
	m.indexSize.WithLabelValues("source_url").Set(float64(source))
}
