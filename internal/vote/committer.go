package vote

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"

	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/sentinel"
	"ballotguard/pkg/requestcontext"
)

// Store persists votes. Insert joins the transaction carried by ctx; a second
// vote for the same voter is sentinel.ErrAlreadyUsed.
type Store interface {
	Insert(ctx context.Context, v *Vote) error
	Get(ctx context.Context, voteID id.VoteID) (*Vote, error)
	MarkAnchored(ctx context.Context, voteID id.VoteID, reference string) error
	RecordAnchorFailure(ctx context.Context, voteID id.VoteID, reason string) error
	ListUnconfirmed(ctx context.Context, limit int) ([]*Vote, error)
}

// Anchor writes a commitment to the tamper-evident ledger and returns the
// ledger reference once confirmed.
type Anchor interface {
	Anchor(ctx context.Context, commitment string) (string, error)
}

// Committer turns a granted claim into a durable vote.
type Committer struct {
	store  Store
	anchor Anchor
	logger *slog.Logger
}

type Option func(*Committer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Committer) { c.logger = logger }
}

func NewCommitter(store Store, anchor Anchor, opts ...Option) *Committer {
	c := &Committer{store: store, anchor: anchor, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit stores the vote with its commitment. The caller must hold a granted
// claim for voterID; it is not re-checked here.
func (c *Committer) Commit(ctx context.Context, voterID id.VoterID, choiceID id.ChoiceID) (*Receipt, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to draw receipt nonce")
	}

	v := &Vote{
		ID:         id.NewVoteID(),
		VoterID:    voterID,
		ChoiceID:   choiceID,
		Commitment: DeriveCommitment(voterID, choiceID, nonce),
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := c.store.Insert(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeAlreadyVoted, "voter already cast a ballot")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store vote")
	}
	return &Receipt{Vote: v, Nonce: nonce}, nil
}

// AnchorVote anchors a stored vote and persists the outcome. It never fails
// the vote: an anchor error leaves the vote unconfirmed for reconciliation.
func (c *Committer) AnchorVote(ctx context.Context, v *Vote) AnchorResult {
	reference, err := c.anchor.Anchor(ctx, v.Commitment)
	if err != nil {
		c.logger.WarnContext(ctx, "vote anchoring failed",
			"vote_id", v.ID.String(),
			"error", err,
		)
		if recErr := c.store.RecordAnchorFailure(context.WithoutCancel(ctx), v.ID, err.Error()); recErr != nil {
			c.logger.ErrorContext(ctx, "anchor failure not persisted", "vote_id", v.ID.String(), "error", recErr)
		}
		v.LedgerAttempts++
		v.LedgerLastError = err.Error()
		return AnchorResult{Err: err}
	}

	if err := c.store.MarkAnchored(context.WithoutCancel(ctx), v.ID, reference); err != nil {
		c.logger.ErrorContext(ctx, "anchored vote not marked confirmed",
			"vote_id", v.ID.String(),
			"reference", reference,
			"error", err,
		)
		return AnchorResult{Reference: reference, Err: err}
	}
	v.LedgerReference = reference
	v.LedgerConfirmed = true
	c.logger.InfoContext(ctx, "vote anchored",
		"vote_id", v.ID.String(),
		"reference", reference,
	)
	return AnchorResult{Reference: reference, Confirmed: true}
}

// Verification is the outcome of a receipt check.
type Verification struct {
	Valid           bool
	LedgerReference string
	LedgerConfirmed bool
}

// VerifyReceipt recomputes the commitment for a receipt. An unknown vote and a
// wrong choice or nonce are indistinguishable to the caller.
func (c *Committer) VerifyReceipt(ctx context.Context, voteID id.VoteID, choiceID id.ChoiceID, nonceHex string) (*Verification, error) {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != NonceSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "nonce must be 64 hex characters")
	}

	v, err := c.store.Get(ctx, voteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Verification{Valid: false}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vote")
	}
	if !VerifyCommitment(v.Commitment, v.VoterID, choiceID, nonce) {
		return &Verification{Valid: false}, nil
	}
	return &Verification{
		Valid:           true,
		LedgerReference: v.LedgerReference,
		LedgerConfirmed: v.LedgerConfirmed,
	}, nil
}

// Unconfirmed lists votes still awaiting their ledger anchor, oldest first.
func (c *Committer) Unconfirmed(ctx context.Context, limit int) ([]*Vote, error) {
	return c.store.ListUnconfirmed(ctx, limit)
}
