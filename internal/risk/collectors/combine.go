// Package collectors holds the risk signal sources: device fingerprint,
// behavioral timing, biometric consistency and network history.
package collectors

import (
	"math"

	"ballotguard/internal/risk"
)

// anomalyLevel is the severity from which a signal is flagged anomalous.
const anomalyLevel = 0.5

// finding accumulates reasons with their individual severities.
type finding struct {
	severities []float64
	reasons    []string
}

func (f *finding) add(reason string, severity float64) {
	if severity <= 0 {
		return
	}
	f.severities = append(f.severities, math.Min(severity, 1))
	f.reasons = append(f.reasons, reason)
}

// signal combines the findings with a noisy-or, which is monotone in every
// input and never exceeds 1.
func (f *finding) signal() risk.Signal {
	keep := 1.0
	for _, s := range f.severities {
		keep *= 1 - s
	}
	severity := 1 - keep
	return risk.Signal{
		IsAnomalous: severity >= anomalyLevel,
		Severity:    severity,
		Reasons:     f.reasons,
	}
}
