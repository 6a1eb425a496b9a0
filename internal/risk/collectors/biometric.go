package collectors

import (
	"context"
	"errors"
	"math"

	"ballotguard/internal/risk"
	id "ballotguard/pkg/domain"
)

var errBiometricRange = errors.New("biometric scores out of range")

// BiometricAnalyzer checks the external liveness and deepfake scores for
// consistency. It never sees raw biometric data.
type BiometricAnalyzer struct{}

func NewBiometricAnalyzer() *BiometricAnalyzer {
	return &BiometricAnalyzer{}
}

func (a *BiometricAnalyzer) Name() risk.CollectorName { return risk.CollectorBiometric }

func (a *BiometricAnalyzer) Collect(_ context.Context, _ id.VoterID, evidence risk.Evidence) (risk.Signal, error) {
	ev := evidence.Biometric
	if ev == nil {
		return risk.Signal{}, nil
	}
	if !unit(ev.LivenessScore) || !unit(ev.DeepfakeScore) || (ev.MatchScore != nil && !unit(*ev.MatchScore)) {
		return risk.Signal{}, errBiometricRange
	}

	var f finding
	f.add("liveness_low", 1-ev.LivenessScore)
	f.add("deepfake_suspected", ev.DeepfakeScore)
	if ev.MatchScore != nil {
		f.add("face_mismatch", 1-*ev.MatchScore)
	}
	return f.signal(), nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
