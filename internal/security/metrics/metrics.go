package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the security ledger and its relay.
type Metrics struct {
	EventsRecorded  *prometheus.CounterVec
	RecordFailures  prometheus.Counter
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
	OutboxBacklog   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_security_events_total",
			Help: "Security events recorded by type",
		}, []string{"type"}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_security_event_record_failures_total",
			Help: "Security events that could not be persisted",
		}),
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_security_outbox_published_total",
			Help: "Outbox entries published to the event stream",
		}),
		OutboxFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ballotguard_security_outbox_publish_failures_total",
			Help: "Outbox relay batches that failed to publish",
		}),
		OutboxBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ballotguard_security_outbox_last_batch_size",
			Help: "Number of entries in the most recent relay batch",
		}),
	}
}

func (m *Metrics) IncrementRecorded(eventType string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncrementRecordFailure() {
	if m != nil {
		m.RecordFailures.Inc()
	}
}

func (m *Metrics) ObservePublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
		m.OutboxBacklog.Set(float64(n))
	}
}

func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.OutboxFailures.Inc()
	}
}
