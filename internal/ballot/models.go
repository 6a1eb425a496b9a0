// Package ballot runs the vote-cast state machine: session flags, risk
// assessment, the eligibility claim, the vote commit and ledger anchoring.
package ballot

import (
	"ballotguard/internal/risk"
	id "ballotguard/pkg/domain"
)

// State is a stage of the cast state machine.
type State string

const (
	StateReceived           State = "received"
	StateRiskAssessed       State = "risk_assessed"
	StateBlocked            State = "blocked"
	StateChallenged         State = "challenged"
	StateAllowed            State = "allowed"
	StateEligibilityChecked State = "eligibility_checked"
	StateDuplicateRejected  State = "duplicate_rejected"
	StateClaimed            State = "claimed"
	StateCommitted          State = "committed"
	StateLedgerConfirmed    State = "ledger_confirmed"
	StateLedgerUnconfirmed  State = "ledger_unconfirmed"
)

// CastRequest is a voter's ballot with the verified session behind it.
type CastRequest struct {
	VoterID     id.VoterID
	Flags       id.VerificationFlags
	ChoiceID    id.ChoiceID
	ChoiceLabel string
	Evidence    risk.Evidence
}

// CastResult is returned once the vote is durable.
type CastResult struct {
	VoteID               id.VoteID
	TransactionReference string
	LedgerConfirmed      bool
	ReceiptNonce         []byte
	State                State
}
