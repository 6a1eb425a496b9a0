package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerificationFlags_SteppedUpWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, VerificationFlags{}.SteppedUpWithin(now, 5*time.Minute), "never stepped up")
	assert.True(t, VerificationFlags{StepUpAt: now.Add(-time.Minute)}.SteppedUpWithin(now, 5*time.Minute))
	assert.True(t, VerificationFlags{StepUpAt: now.Add(-5 * time.Minute)}.SteppedUpWithin(now, 5*time.Minute))
	assert.False(t, VerificationFlags{StepUpAt: now.Add(-6 * time.Minute)}.SteppedUpWithin(now, 5*time.Minute))
	assert.False(t, VerificationFlags{StepUpAt: now.Add(time.Minute)}.SteppedUpWithin(now, 5*time.Minute), "future timestamps are not trusted")
	assert.False(t, VerificationFlags{StepUpAt: now}.SteppedUpWithin(now, 0), "disabled window")
}
