// Package reconcile drives votes to a confirmed ledger anchor outside the
// request path: the Dispatcher anchors freshly committed votes in the
// background and the Reconciler re-anchors anything left unconfirmed.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"ballotguard/internal/ledger/metrics"
	"ballotguard/internal/vote"
)

// Anchorer anchors stored votes and lists the ones still pending.
type Anchorer interface {
	AnchorVote(ctx context.Context, v *vote.Vote) vote.AnchorResult
	Unconfirmed(ctx context.Context, limit int) ([]*vote.Vote, error)
}

// Reconciler periodically re-anchors unconfirmed votes, oldest first.
type Reconciler struct {
	anchorer  Anchorer
	interval  time.Duration
	batchSize int
	minAge    time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	minAge  time.Duration
	now     func() time.Time
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMinAge leaves votes younger than d to the request that committed them,
// which may still be anchoring. Reconciler only.
func WithMinAge(d time.Duration) Option {
	return func(o *options) { o.minAge = d }
}

// WithClock overrides the time source used for the minimum age.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewReconciler(anchorer Anchorer, interval time.Duration, batchSize int, opts ...Option) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	o := buildOptions(opts)
	return &Reconciler{
		anchorer:  anchorer,
		interval:  interval,
		batchSize: batchSize,
		minAge:    o.minAge,
		now:       o.now,
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "ledger reconciliation failed", "error", err)
			}
		}
	}
}

// RunOnce processes one batch and returns how many votes were confirmed. The
// batch stops at the first failed anchor and at the first vote younger than
// the minimum age.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.anchorer.Unconfirmed(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.minAge)
	confirmed := 0
	for _, v := range pending {
		if ctx.Err() != nil {
			break
		}
		// Oldest first, so everything after this one is younger too.
		if r.minAge > 0 && v.CreatedAt.After(cutoff) {
			break
		}
		result := r.anchorer.AnchorVote(ctx, v)
		if !result.Confirmed {
			r.metrics.IncrementReconciled("failed")
			r.logger.InfoContext(ctx, "ledger reconciliation paused",
				"vote_id", v.ID.String(),
				"pending", len(pending)-confirmed,
			)
			break
		}
		confirmed++
		r.metrics.IncrementReconciled("confirmed")
	}
	if confirmed > 0 {
		r.logger.InfoContext(ctx, "ledger reconciliation confirmed votes", "count", confirmed)
	}
	return confirmed, nil
}
