package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the cast pipeline.
type Metrics struct {
	// Terminal outcomes by state
	Outcomes *prometheus.CounterVec

	// Pipeline duration by terminal state
	CastLatency *prometheus.HistogramVec

	// Challenges admitted through a recent step-up
	StepUpAdmissions prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_cast_outcomes_total",
			Help: "Vote cast outcomes by terminal state",
		}, []string{"state"}),

		CastLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballotguard_cast_duration_seconds",
			Help:    "Duration of the vote cast pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"state"}),

		StepUpAdmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_cast_step_up_admissions_total",
			Help: "Risk challenges admitted because the session was recently stepped up",
		}),
	}
}

func (m *Metrics) ObserveOutcome(state string, d time.Duration) {
	if m != nil {
		m.Outcomes.WithLabelValues(state).Inc()
		m.CastLatency.WithLabelValues(state).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementStepUpAdmission() {
	if m != nil {
		m.StepUpAdmissions.Inc()
	}
}
