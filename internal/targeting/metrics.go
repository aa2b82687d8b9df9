package targeting

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engagement outcomes recorded by Metrics.
const (
	OutcomeSelected     = "selected"
	OutcomeNoMatch      = "no_match"
	OutcomeUnknownEvent = "unknown_event"
	OutcomeNoManifest   = "no_manifest"
)

// Load results recorded by Metrics.
const (
	LoadOK        = "ok"
	LoadDuplicate = "duplicate"
	LoadRejected  = "rejected"
)

// Metrics contains Prometheus metrics for the targeter.
// A nil *Metrics records nothing.
type Metrics struct {
	engagements *prometheus.CounterVec
	loads       *prometheus.CounterVec
	evaluations prometheus.Histogram
	active      *prometheus.GaugeVec
}

// NewMetrics creates targeter metrics registered on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		engagements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "targeting",
				Name:      "engagements_total",
				Help:      "Total number of engaged events by outcome",
			},
			[]string{"outcome"},
		),

		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "targeting",
				Name:      "manifest_loads_total",
				Help:      "Total number of manifest installs by source and result",
			},
			[]string{"source", "result"},
		),

		evaluations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "targeting",
				Name:      "invocation_evaluation_seconds",
				Help:      "Time spent evaluating one invocation's criteria",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),

		active: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "targeting",
				Name:      "active_interactions",
				Help:      "Number of interactions in the installed manifest by source",
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) recordEngagement(outcome string) {
	if m == nil {
		return
	}
	m.engagements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordLoad(source, result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(source, result).Inc()
}

func (m *Metrics) observeEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Observe(d.Seconds())
}

func (m *Metrics) setActive(source string, n int) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(source).Set(float64(n))
}
