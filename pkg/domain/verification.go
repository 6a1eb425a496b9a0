package domain

import "time"

// VerificationFlags records which identity checks a session has passed.
// StepUpAt is the time of the most recent OTP or biometric re-verification;
// zero means the session was never stepped up.
type VerificationFlags struct {
	OTPVerified       bool
	BiometricVerified bool
	StepUpAt          time.Time
}

// SteppedUpWithin reports whether the last re-verification happened inside window.
func (f VerificationFlags) SteppedUpWithin(now time.Time, window time.Duration) bool {
	if f.StepUpAt.IsZero() || window <= 0 {
		return false
	}
	if f.StepUpAt.After(now) {
		return false
	}
	return now.Sub(f.StepUpAt) <= window
}
