package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotguard/pkg/platform/circuit"
)

type scriptedAnchor struct {
	calls    atomic.Int32
	failures int32
	err      error
	block    bool
}

func (a *scriptedAnchor) Anchor(ctx context.Context, commitment string) (string, error) {
	n := a.calls.Add(1)
	if a.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= a.failures {
		return "", a.err
	}
	return "0xref", nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetryingAnchor(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		inner := &scriptedAnchor{failures: 2, err: errors.New("nonce too low")}
		ref, err := NewRetryingAnchor(inner, fastPolicy()).Anchor(ctx, commitmentOf(1))
		require.NoError(t, err)
		assert.Equal(t, "0xref", ref)
		assert.EqualValues(t, 3, inner.calls.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		inner := &scriptedAnchor{failures: 10, err: errors.New("node unreachable")}
		_, err := NewRetryingAnchor(inner, fastPolicy()).Anchor(ctx, commitmentOf(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node unreachable")
		assert.EqualValues(t, 3, inner.calls.Load())
	})

	t.Run("malformed commitment is not retried", func(t *testing.T) {
		inner := &scriptedAnchor{failures: 10, err: ErrInvalidCommitment}
		_, err := NewRetryingAnchor(inner, fastPolicy()).Anchor(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidCommitment)
		assert.EqualValues(t, 1, inner.calls.Load())
	})

	t.Run("hard timeout bounds a hanging ledger", func(t *testing.T) {
		policy := fastPolicy()
		policy.Timeout = 20 * time.Millisecond
		start := time.Now()
		_, err := NewRetryingAnchor(&scriptedAnchor{block: true}, policy).Anchor(ctx, commitmentOf(1))
		require.Error(t, err)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestRetryingAnchor_Breaker(t *testing.T) {
	ctx := context.Background()
	breaker := circuit.New("ledger", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	inner := &scriptedAnchor{failures: 100, err: errors.New("down")}
	policy := fastPolicy()
	policy.MaxAttempts = 1
	anchor := NewRetryingAnchor(inner, policy, WithBreaker(breaker))

	for range 2 {
		_, err := anchor.Anchor(ctx, commitmentOf(1))
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err := anchor.Anchor(ctx, commitmentOf(1))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, inner.calls.Load(), "open breaker skips the ledger")
}
