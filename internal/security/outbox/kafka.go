package outbox

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"ballotguard/internal/security/store"
)

// Producer is the slice of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes outbox entries to a topic, keyed by aggregate so that
// events for one voter stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entries []store.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]*kgo.Record, len(entries))
	for i, e := range entries {
		records[i] = &kgo.Record{
			Topic:     p.topic,
			Key:       []byte(e.AggregateID),
			Value:     e.Payload,
			Timestamp: e.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "aggregate_type", Value: []byte(e.AggregateType)},
				{Key: "outbox_id", Value: []byte(e.ID.String())},
			},
		}
	}
	if err := p.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d security events: %w", len(records), err)
	}
	return nil
}

// LogPublisher is used when no brokers are configured. Entries are marked
// published after being logged so the outbox does not grow unbounded in dev.
type LogPublisher struct {
	log func(ctx context.Context, msg string, args ...any)
}

func NewLogPublisher(log func(ctx context.Context, msg string, args ...any)) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, entries []store.OutboxEntry) error {
	for _, e := range entries {
		p.log(ctx, "security event published", "event_type", e.EventType, "aggregate_id", e.AggregateID)
	}
	return nil
}
