// Package metrics exposes Prometheus collectors for decision engine activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "focuscoach"

// Metrics holds the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions        *prometheus.CounterVec
	selections       *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	effectiveness    *prometheus.HistogramVec
}

// MustNewMetrics constructs Metrics and registers them with reg, reusing
// collectors that are already registered. Other registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Decisions made, by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)
	selections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "selections_total",
			Help:      "Interventions issued, by template.",
		},
		[]string{"template"},
	)
	feedback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "feedback_total",
			Help:      "Feedback records received, by result status.",
		},
		[]string{"status"},
	)
	decisionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decision_duration_seconds",
			Help:      "Time spent in assess-and-decide, including state load and save.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)
	effectiveness := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "feedback_outcome",
			Help:      "Outcome score of accepted feedback, by template.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"template"},
	)

	m := &Metrics{
		decisions:        decisions,
		selections:       selections,
		feedback:         feedback,
		decisionDuration: decisionDuration,
		effectiveness:    effectiveness,
	}

	for _, collector := range []prometheus.Collector{decisions, selections, feedback, decisionDuration, effectiveness} {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case decisions:
				m.decisions = already.ExistingCollector.(*prometheus.CounterVec)
			case selections:
				m.selections = already.ExistingCollector.(*prometheus.CounterVec)
			case feedback:
				m.feedback = already.ExistingCollector.(*prometheus.CounterVec)
			case decisionDuration:
				m.decisionDuration = already.ExistingCollector.(prometheus.Histogram)
			case effectiveness:
				m.effectiveness = already.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}
	return m
}

// ObserveDecision records one assess-and-decide call.
func (m *Metrics) ObserveDecision(outcome, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.decisions.WithLabelValues(outcome, reason).Inc()
	m.decisionDuration.Observe(duration.Seconds())
}

// IncSelection counts an issued intervention.
func (m *Metrics) IncSelection(template string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(template).Inc()
}

// ObserveFeedback records a feedback call and, when it was applied, its outcome score.
func (m *Metrics) ObserveFeedback(status, template string, outcome float64, applied bool) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(status).Inc()
	if applied {
		m.effectiveness.WithLabelValues(template).Observe(outcome)
	}
}
