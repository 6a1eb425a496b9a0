package eligibility

import (
	"context"
	"errors"
	"log/slog"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/sentinel"
	"ballotguard/pkg/requestcontext"
)

// Store performs the atomic claim. ClaimVote returns nil when the flag was
// flipped by this call, sentinel.ErrAlreadyUsed when it was already set and
// sentinel.ErrNotFound for an unknown voter.
type Store interface {
	ClaimVote(ctx context.Context, voterID id.VoterID) error
}

// EventRecorder is the security ledger port.
type EventRecorder interface {
	Record(ctx context.Context, event security.Event) (*security.Event, error)
}

const duplicateVoteSeverity = 0.7

// Guard decides which of several concurrent requests for one voter may cast.
type Guard struct {
	store    Store
	recorder EventRecorder
	logger   *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func NewGuard(store Store, recorder EventRecorder, opts ...Option) *Guard {
	g := &Guard{store: store, recorder: recorder, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryClaimVote flips the voter's has-voted flag if it is still false. A lost
// race is not retried and is reported as Granted=false. It writes nothing to
// the security ledger, so it is safe to call while holding a transaction;
// the caller records the loss with RecordDuplicate once that is released.
func (g *Guard) TryClaimVote(ctx context.Context, voterID id.VoterID) (ClaimResult, error) {
	err := g.store.ClaimVote(ctx, voterID)
	switch {
	case err == nil:
		return ClaimResult{Granted: true}, nil
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return ClaimResult{Granted: false}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return ClaimResult{}, dErrors.New(dErrors.CodeUnauthorized, "voter is not registered")
	default:
		return ClaimResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim vote")
	}
}

// RecordDuplicate writes the duplicate_vote event. The rejection stands even
// when the ledger write fails; the failure is logged.
func (g *Guard) RecordDuplicate(ctx context.Context, voterID id.VoterID) {
	_, err := g.recorder.Record(ctx, security.Event{
		Type:     security.EventDuplicateVote,
		VoterID:  voterID,
		Severity: duplicateVoteSeverity,
		Details: map[string]any{
			"reason":     "vote already cast",
			"session_id": requestcontext.SessionID(ctx).String(),
		},
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "duplicate vote not recorded",
			"voter_id", voterID.String(),
			"error", err,
		)
	}
}
