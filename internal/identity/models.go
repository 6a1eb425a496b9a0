// Package identity verifies voter session tokens issued by the login flow.
package identity

import (
	"time"

	id "ballotguard/pkg/domain"
)

// Session is a verified voter session.
type Session struct {
	VoterID   id.VoterID
	SessionID id.SessionID
	Flags     id.VerificationFlags
	ExpiresAt time.Time
}

// Eligible reports whether the session carries every verification the cast
// path requires. OTP is always required; biometric only under policy.
func (s *Session) Eligible(requireBiometric bool) bool {
	if s == nil || !s.Flags.OTPVerified {
		return false
	}
	if requireBiometric && !s.Flags.BiometricVerified {
		return false
	}
	return true
}
