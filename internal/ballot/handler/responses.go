package handler

import (
	"encoding/hex"

	"ballotguard/internal/ballot"
	"ballotguard/internal/vote"
)

// CastVoteResponse is the 200 body of POST /votes. ReceiptNonce is shown once
// and never stored.
type CastVoteResponse struct {
	Success              bool   `json:"success"`
	VoteID               string `json:"vote_id"`
	TransactionReference string `json:"transaction_reference"`
	LedgerConfirmed      bool   `json:"ledger_confirmed"`
	ReceiptNonce         string `json:"receipt_nonce"`
}

func fromCastResult(r *ballot.CastResult) CastVoteResponse {
	return CastVoteResponse{
		Success:              true,
		VoteID:               r.VoteID.String(),
		TransactionReference: r.TransactionReference,
		LedgerConfirmed:      r.LedgerConfirmed,
		ReceiptNonce:         hex.EncodeToString(r.ReceiptNonce),
	}
}

type VerifyReceiptResponse struct {
	Valid           bool   `json:"valid"`
	LedgerReference string `json:"ledger_reference,omitempty"`
	LedgerConfirmed bool   `json:"ledger_confirmed"`
}

func fromVerification(v *vote.Verification) VerifyReceiptResponse {
	return VerifyReceiptResponse{
		Valid:           v.Valid,
		LedgerReference: v.LedgerReference,
		LedgerConfirmed: v.LedgerConfirmed,
	}
}
