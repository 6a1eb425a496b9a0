package collectors

import (
	"context"
	"fmt"
	"math"
	"time"

	"ballotguard/internal/risk"
	"ballotguard/internal/risk/history"
	id "ballotguard/pkg/domain"
)

const (
	minKeystrokeSamples = 5
	minHumanFormFillMs  = 1500
)

// BehavioralAnalyzer looks at keystroke and navigation timing, and at how
// often the voter has tried to cast recently.
type BehavioralAnalyzer struct {
	history history.Store
	window  time.Duration
}

func NewBehavioralAnalyzer(store history.Store, window time.Duration) *BehavioralAnalyzer {
	return &BehavioralAnalyzer{history: store, window: window}
}

func (a *BehavioralAnalyzer) Name() risk.CollectorName { return risk.CollectorBehavioral }

func (a *BehavioralAnalyzer) Collect(ctx context.Context, voterID id.VoterID, evidence risk.Evidence) (risk.Signal, error) {
	ev := evidence.Behavior
	if ev == nil {
		return risk.Signal{}, nil
	}

	var f finding
	if len(ev.KeystrokeIntervalsMs) >= minKeystrokeSamples {
		mean, cv := meanAndVariation(ev.KeystrokeIntervalsMs)
		if cv < 0.05 {
			f.add("uniform_keystroke_timing", 0.7)
		}
		if mean < 30 {
			f.add("superhuman_typing_speed", 0.6)
		}
	}
	if ev.FormFillMs > 0 && ev.FormFillMs < minHumanFormFillMs {
		f.add("form_filled_too_fast", 0.6)
	}
	if ev.PointerEvents == 0 && len(ev.KeystrokeIntervalsMs) == 0 {
		f.add("no_interaction", 0.3)
	}
	if ev.Pasted {
		f.add("pasted_input", 0.1)
	}

	attempts, err := a.history.Increment(ctx, history.Key("attempts", voterID.String()), a.window)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("attempt history: %w", err)
	}
	switch {
	case attempts > 10:
		f.add("repeated_cast_attempts", 0.6)
	case attempts > 3:
		f.add("repeated_cast_attempts", 0.3)
	}

	return f.signal(), nil
}

// meanAndVariation returns the mean and coefficient of variation.
func meanAndVariation(values []float64) (float64, float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean <= 0 {
		return mean, 0
	}
	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq/float64(len(values))) / mean
}
