package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the risk scorer.
type Metrics struct {
	// Collector latencies by collector name
	CollectorLatency *prometheus.HistogramVec

	// Collector failures by collector name and kind (error, timeout, panic)
	CollectorFailures *prometheus.CounterVec

	// Recommendations by outcome
	Recommendations *prometheus.CounterVec

	// Aggregate risk distribution
	AggregateRisk prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CollectorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballotguard_risk_collector_duration_seconds",
			Help:    "Duration of risk collectors by name",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"collector"}),

		CollectorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_risk_collector_failures_total",
			Help: "Risk collector failures by name and kind",
		}, []string{"collector", "kind"}),

		Recommendations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_risk_recommendations_total",
			Help: "Risk recommendations by outcome",
		}, []string{"recommendation"}),

		AggregateRisk: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballotguard_risk_aggregate",
			Help:    "Aggregate risk score distribution",
			Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
	}
}

func (m *Metrics) ObserveCollectorLatency(collector string, d time.Duration) {
	if m != nil {
		m.CollectorLatency.WithLabelValues(collector).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCollectorFailure(collector, kind string) {
	if m != nil {
		m.CollectorFailures.WithLabelValues(collector, kind).Inc()
	}
}

func (m *Metrics) ObserveAssessment(recommendation string, aggregate float64) {
	if m != nil {
		m.Recommendations.WithLabelValues(recommendation).Inc()
		m.AggregateRisk.Observe(aggregate)
	}
}
