package vote_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotguard/internal/vote"
	"ballotguard/internal/vote/store"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/requestcontext"
	"ballotguard/pkg/testutil"
)

type fakeAnchor struct {
	mu          sync.Mutex
	err         error
	commitments []string
}

func (a *fakeAnchor) Anchor(_ context.Context, commitment string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commitments = append(a.commitments, commitment)
	if a.err != nil {
		return "", a.err
	}
	return "0xref-" + commitment[:8], nil
}

func TestCommit(t *testing.T) {
	testutil.Given(t, "a voter holding a granted claim", func(t *testing.T) {
		votes := store.NewInMemory()
		committer := vote.NewCommitter(votes, &fakeAnchor{})
		voterID := id.VoterID(uuid.New())
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), now)

		testutil.When(t, "the vote is committed", func(t *testing.T) {
			receipt, err := committer.Commit(ctx, voterID, "candidate-a")
			require.NoError(t, err)

			testutil.Then(t, "the stored vote carries a verifiable commitment and no ledger reference", func(t *testing.T) {
				stored, err := votes.Get(ctx, receipt.Vote.ID)
				require.NoError(t, err)
				assert.Equal(t, now, stored.CreatedAt)
				assert.False(t, stored.LedgerConfirmed)
				assert.Empty(t, stored.LedgerReference)
				assert.True(t, vote.VerifyCommitment(stored.Commitment, voterID, "candidate-a", receipt.Nonce))
			})

			testutil.Then(t, "a second vote for the same voter is rejected", func(t *testing.T) {
				_, err := committer.Commit(ctx, voterID, "candidate-b")
				assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyVoted))
				assert.Equal(t, 1, votes.Count())
			})
		})
	})
}

func TestAnchorVote(t *testing.T) {
	ctx := context.Background()

	t.Run("success confirms the vote", func(t *testing.T) {
		votes := store.NewInMemory()
		anchor := &fakeAnchor{}
		committer := vote.NewCommitter(votes, anchor)
		receipt, err := committer.Commit(ctx, id.VoterID(uuid.New()), "candidate-a")
		require.NoError(t, err)

		result := committer.AnchorVote(ctx, receipt.Vote)
		require.NoError(t, result.Err)
		assert.True(t, result.Confirmed)
		assert.Equal(t, []string{receipt.Vote.Commitment}, anchor.commitments)

		stored, err := votes.Get(ctx, receipt.Vote.ID)
		require.NoError(t, err)
		assert.True(t, stored.LedgerConfirmed)
		assert.Equal(t, result.Reference, stored.LedgerReference)

		pending, err := committer.Unconfirmed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failure keeps the vote unconfirmed", func(t *testing.T) {
		votes := store.NewInMemory()
		committer := vote.NewCommitter(votes, &fakeAnchor{err: errors.New("node unreachable")})
		receipt, err := committer.Commit(ctx, id.VoterID(uuid.New()), "candidate-a")
		require.NoError(t, err)

		result := committer.AnchorVote(ctx, receipt.Vote)
		assert.Error(t, result.Err)
		assert.False(t, result.Confirmed)

		stored, err := votes.Get(ctx, receipt.Vote.ID)
		require.NoError(t, err)
		assert.False(t, stored.LedgerConfirmed)
		assert.Equal(t, 1, stored.LedgerAttempts)
		assert.Equal(t, "node unreachable", stored.LedgerLastError)

		pending, err := committer.Unconfirmed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, receipt.Vote.ID, pending[0].ID)
	})
}

func TestVerifyReceipt(t *testing.T) {
	ctx := context.Background()
	votes := store.NewInMemory()
	committer := vote.NewCommitter(votes, &fakeAnchor{})
	receipt, err := committer.Commit(ctx, id.VoterID(uuid.New()), "candidate-a")
	require.NoError(t, err)
	committer.AnchorVote(ctx, receipt.Vote)
	nonceHex := hex.EncodeToString(receipt.Nonce)

	t.Run("matching receipt is valid", func(t *testing.T) {
		res, err := committer.VerifyReceipt(ctx, receipt.Vote.ID, "candidate-a", nonceHex)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.True(t, res.LedgerConfirmed)
		assert.NotEmpty(t, res.LedgerReference)
	})

	t.Run("wrong choice is invalid", func(t *testing.T) {
		res, err := committer.VerifyReceipt(ctx, receipt.Vote.ID, "candidate-b", nonceHex)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Empty(t, res.LedgerReference)
	})

	t.Run("unknown vote is invalid", func(t *testing.T) {
		res, err := committer.VerifyReceipt(ctx, id.NewVoteID(), "candidate-a", nonceHex)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("malformed nonce is rejected", func(t *testing.T) {
		for _, nonce := range []string{"", "zz", hex.EncodeToString([]byte("short"))} {
			_, err := committer.VerifyReceipt(ctx, receipt.Vote.ID, "candidate-a", nonce)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), nonce)
		}
	})
}
