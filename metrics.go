package fedquery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hugr-lab/fedquery/source"
)

// Translation outcomes recorded by Metrics.
const (
	OutcomeTranslated  = "translated"
	OutcomeUnsupported = "unsupported"
	OutcomeInvalid     = "invalid"
)

// Metrics holds the federator's Prometheus collectors.
type Metrics struct {
	Translations   *prometheus.CounterVec
	BackendErrors  *prometheus.CounterVec
	SourceSkips    *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
}

// NewMetrics creates the federator collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Translations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedquery_translations_total",
				Help: "Total number of filter translations per source",
			},
			[]string{"source", "outcome"},
		),
		BackendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedquery_backend_errors_total",
				Help: "Total number of failed backend queries",
			},
			[]string{"source", "kind"},
		),
		SourceSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedquery_source_skips_total",
				Help: "Total number of sources skipped without a query",
			},
			[]string{"source", "reason"},
		),
		SearchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedquery_search_duration_seconds",
				Help:    "Backend query duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
			},
			[]string{"source"},
		),
	}
}

// The record methods accept a nil receiver so the federator can run without metrics.

func (m *Metrics) recordTranslation(src, outcome string) {
	if m == nil {
		return
	}
	m.Translations.WithLabelValues(src, outcome).Inc()
}

func (m *Metrics) recordSkip(src string, reason SkipReason) {
	if m == nil {
		return
	}
	m.SourceSkips.WithLabelValues(src, string(reason)).Inc()
}

func (m *Metrics) recordQuery(src string, d time.Duration, kind error) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(src).Observe(d.Seconds())
	if kind != nil {
		m.BackendErrors.WithLabelValues(src, source.KindName(kind)).Inc()
	}
}
