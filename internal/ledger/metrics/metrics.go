package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for vote anchoring.
type Metrics struct {
	// Anchor attempts by outcome (confirmed, failed)
	AnchorAttempts *prometheus.CounterVec

	// End-to-end anchor latency including retries
	AnchorLatency prometheus.Histogram

	// Anchor calls skipped while the breaker is open
	BreakerRejections prometheus.Counter

	// 1 while the breaker is open
	BreakerOpen prometheus.Gauge

	// Votes re-anchored by the reconciler by outcome
	Reconciled *prometheus.CounterVec

	// Async dispatch queue depth and overflow
	DispatchQueueDepth prometheus.Gauge
	DispatchOverflow   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		AnchorAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_ledger_anchor_attempts_total",
			Help: "Ledger anchor attempts by outcome",
		}, []string{"outcome"}),

		AnchorLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballotguard_ledger_anchor_duration_seconds",
			Help:    "Duration of ledger anchoring including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		BreakerRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_ledger_breaker_rejections_total",
			Help: "Anchor calls skipped because the circuit breaker was open",
		}),

		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ballotguard_ledger_breaker_open",
			Help: "Whether the ledger circuit breaker is open",
		}),

		Reconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_ledger_reconciled_total",
			Help: "Votes re-anchored by the reconciler by outcome",
		}, []string{"outcome"}),

		DispatchQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ballotguard_ledger_dispatch_queue_depth",
			Help: "Votes waiting for asynchronous anchoring",
		}),

		DispatchOverflow: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_ledger_dispatch_overflow_total",
			Help: "Votes left to the reconciler because the dispatch queue was full",
		}),
	}
}

func (m *Metrics) IncrementAttempt(outcome string) {
	if m != nil {
		m.AnchorAttempts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveAnchorLatency(d time.Duration) {
	if m != nil {
		m.AnchorLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementBreakerRejection() {
	if m != nil {
		m.BreakerRejections.Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncrementReconciled(outcome string) {
	if m != nil {
		m.Reconciled.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.DispatchQueueDepth.Set(float64(n))
	}
}

func (m *Metrics) IncrementOverflow() {
	if m != nil {
		m.DispatchOverflow.Inc()
	}
}
