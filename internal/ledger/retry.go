package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ballotguard/internal/ledger/metrics"
	"ballotguard/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without contacting the ledger while the breaker
// is open.
var ErrCircuitOpen = errors.New("ledger circuit open")

// Anchor is a single anchoring attempt.
type Anchor interface {
	Anchor(ctx context.Context, commitment string) (string, error)
}

// RetryPolicy bounds one anchoring call.
type RetryPolicy struct {
	// Timeout caps the whole call including retries and backoff.
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// RetryingAnchor wraps an Anchor with a hard timeout, exponential backoff and
// a circuit breaker. It satisfies vote.Anchor.
type RetryingAnchor struct {
	inner   Anchor
	policy  RetryPolicy
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*RetryingAnchor)

func WithLogger(logger *slog.Logger) Option {
	return func(a *RetryingAnchor) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *RetryingAnchor) { a.metrics = m }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(a *RetryingAnchor) { a.breaker = b }
}

func NewRetryingAnchor(inner Anchor, policy RetryPolicy, opts ...Option) *RetryingAnchor {
	def := DefaultRetryPolicy()
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	a := &RetryingAnchor{
		inner:  inner,
		policy: policy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RetryingAnchor) Anchor(ctx context.Context, commitment string) (string, error) {
	ctx, span := otel.Tracer("ballotguard/ledger").Start(ctx, "ledger.anchor")
	defer span.End()

	if a.breaker != nil && !a.breaker.Allow() {
		a.metrics.IncrementBreakerRejection()
		span.SetStatus(codes.Error, "circuit open")
		return "", ErrCircuitOpen
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.policy.Timeout)
	defer cancel()

	attempts := 0
	var reference string
	op := func() error {
		attempts++
		ref, err := a.inner.Anchor(ctx, commitment)
		if err != nil {
			a.metrics.IncrementAttempt("failed")
			if errors.Is(err, ErrInvalidCommitment) {
				return backoff.Permanent(err)
			}
			return err
		}
		a.metrics.IncrementAttempt("confirmed")
		reference = ref
		return nil
	}

	err := backoff.RetryNotify(op, a.newBackOff(ctx), func(err error, wait time.Duration) {
		a.logger.DebugContext(ctx, "ledger anchor attempt failed",
			"attempt", attempts,
			"retry_in", wait,
			"error", err,
		)
	})
	a.metrics.ObserveAnchorLatency(time.Since(start))
	span.SetAttributes(attribute.Int("ledger.attempts", attempts))

	if err != nil {
		a.recordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "anchor failed")
		return "", fmt.Errorf("anchor after %d attempt(s): %w", attempts, err)
	}
	a.recordSuccess()
	return reference, nil
}

func (a *RetryingAnchor) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.policy.InitialBackoff
	exp.MaxInterval = a.policy.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.policy.MaxAttempts-1)), ctx)
}

func (a *RetryingAnchor) recordFailure() {
	if a.breaker == nil {
		return
	}
	if _, change := a.breaker.RecordFailure(); change.Opened {
		a.logger.Warn("ledger circuit opened", "breaker", a.breaker.Name())
		a.metrics.SetBreakerOpen(true)
	}
}

func (a *RetryingAnchor) recordSuccess() {
	if a.breaker == nil {
		return
	}
	if _, change := a.breaker.RecordSuccess(); change.Closed {
		a.logger.Info("ledger circuit closed", "breaker", a.breaker.Name())
		a.metrics.SetBreakerOpen(false)
	}
}
