// Package outbox relays committed security events from the outbox table to the
// event stream.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"ballotguard/internal/security/metrics"
	"ballotguard/internal/security/store"
)

// Publisher ships a batch of outbox entries. A batch either publishes fully or
// returns an error; partial success is retried as a whole.
type Publisher interface {
	Publish(ctx context.Context, entries []store.OutboxEntry) error
}

// Source hands out pending entries under a lock.
type Source interface {
	ProcessPending(ctx context.Context, limit int, publish func(context.Context, []store.OutboxEntry) error) (int, error)
}

// Relay drains the outbox on a fixed interval.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(source Source, publisher Publisher, interval time.Duration, batchSize int, opts ...Option) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	r := &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain publishes full batches until the outbox is empty or a publish fails.
func (r *Relay) Drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := r.source.ProcessPending(ctx, r.batchSize, r.publisher.Publish)
		if err != nil {
			r.metrics.IncrementPublishFailure()
			r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			return total
		}
		r.metrics.ObservePublished(n)
		total += n
		if n < r.batchSize {
			return total
		}
	}
	return total
}
