// Package eligibility owns the voter's has-voted flag. The flag moves from
// false to true exactly once, through a single conditional update at the
// storage layer, and never reverts.
package eligibility

import (
	"time"

	id "ballotguard/pkg/domain"
)

// Voter is a registered voter.
type Voter struct {
	ID            id.VoterID
	ContactHandle string
	HasVoted      bool
	Flags         id.VerificationFlags
	CreatedAt     time.Time
}

// ClaimResult reports whether this caller won the right to cast.
type ClaimResult struct {
	Granted bool
}
