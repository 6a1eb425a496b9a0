package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("ledger-anchor")
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "ledger-anchor", b.Name())
}

func TestBreaker_Transitions(t *testing.T) {
	t.Run("opens on the Nth consecutive failure", func(t *testing.T) {
		b := New("ledger-anchor", WithFailureThreshold(3))

		for range 2 {
			open, change := b.RecordFailure()
			assert.False(t, open)
			assert.False(t, change.Opened)
		}
		open, change := b.RecordFailure()
		assert.True(t, open)
		assert.True(t, change.Opened)
		assert.Equal(t, StateOpen, b.State())

		open, change = b.RecordFailure()
		assert.True(t, open)
		assert.False(t, change.Opened, "already open")
	})

	t.Run("a success between failures restarts the count", func(t *testing.T) {
		b := New("ledger-anchor", WithFailureThreshold(3))
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("closes after enough consecutive successes", func(t *testing.T) {
		b := New("ledger-anchor", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		closed, change := b.RecordSuccess()
		assert.False(t, closed)
		assert.False(t, change.Closed)

		closed, change = b.RecordSuccess()
		assert.True(t, closed)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("a failure while open restarts the success count", func(t *testing.T) {
		b := New("ledger-anchor", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordSuccess()
		assert.True(t, b.IsOpen())
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})

	t.Run("reset closes immediately", func(t *testing.T) {
		b := New("ledger-anchor", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})
}

func TestBreaker_AllowHonoursCooldown(t *testing.T) {
	now := time.Date(2026, 11, 3, 8, 0, 0, 0, time.UTC)
	b := New("ledger-anchor",
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow(), "probe allowed after cooldown")

	// A failed probe restarts the cooldown.
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(31 * time.Second)
	_, change := b.RecordSuccess()
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}
