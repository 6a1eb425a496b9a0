// Package vote commits accepted votes: it derives the privacy-preserving
// commitment, stores the vote durably and anchors the commitment on the
// tamper-evident ledger.
package vote

import (
	"time"

	id "ballotguard/pkg/domain"
)

// Vote is an accepted ballot. Votes are append-only; only the ledger fields
// move, from unconfirmed to confirmed.
type Vote struct {
	ID              id.VoteID
	VoterID         id.VoterID
	ChoiceID        id.ChoiceID
	Commitment      string
	LedgerReference string
	LedgerConfirmed bool
	LedgerAttempts  int
	LedgerLastError string
	CreatedAt       time.Time
}

// Receipt is returned to the voter once. The nonce is not stored anywhere.
type Receipt struct {
	Vote  *Vote
	Nonce []byte
}

// AnchorResult is the outcome of one anchoring attempt sequence.
type AnchorResult struct {
	Reference string
	Confirmed bool
	Err       error
}
