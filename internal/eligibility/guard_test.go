package eligibility_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotguard/internal/eligibility"
	"ballotguard/internal/eligibility/store"
	"ballotguard/internal/security"
	securitystore "ballotguard/internal/security/store"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/testutil"
)

func setup(t *testing.T) (*eligibility.Guard, *store.InMemoryStore, *securitystore.InMemoryStore, id.VoterID) {
	t.Helper()
	voters := store.NewInMemory()
	events := securitystore.NewInMemory()
	ledger := security.NewService(events, events)

	voterID := id.VoterID(uuid.New())
	require.NoError(t, voters.Create(context.Background(), &eligibility.Voter{
		ID:            voterID,
		ContactHandle: "voter@example.test",
		Flags:         id.VerificationFlags{OTPVerified: true},
		CreatedAt:     time.Now(),
	}))
	return eligibility.NewGuard(voters, ledger), voters, events, voterID
}

func TestTryClaimVote(t *testing.T) {
	testutil.Given(t, "a registered voter who has not voted", func(t *testing.T) {
		guard, voters, events, voterID := setup(t)

		testutil.When(t, "the voter claims twice", func(t *testing.T) {
			first, err := guard.TryClaimVote(context.Background(), voterID)
			require.NoError(t, err)
			second, err := guard.TryClaimVote(context.Background(), voterID)
			require.NoError(t, err)

			testutil.Then(t, "only the first is granted", func(t *testing.T) {
				assert.True(t, first.Granted)
				assert.False(t, second.Granted)

				v, err := voters.Get(context.Background(), voterID)
				require.NoError(t, err)
				assert.True(t, v.HasVoted)
			})

			testutil.And(t, "nothing is written until the caller records the loss", func(t *testing.T) {
				assert.Zero(t, events.Count(security.EventDuplicateVote))

				guard.RecordDuplicate(context.Background(), voterID)
				assert.Equal(t, 1, events.Count(security.EventDuplicateVote))
			})
		})
	})

	t.Run("unknown voter is unauthorized", func(t *testing.T) {
		guard, _, events, _ := setup(t)
		_, err := guard.TryClaimVote(context.Background(), id.VoterID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Zero(t, events.Count(security.EventDuplicateVote))
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		guard := eligibility.NewGuard(failingStore{}, security.NewService(securitystore.NewInMemory(), securitystore.NewInMemory()))
		_, err := guard.TryClaimVote(context.Background(), id.VoterID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestConcurrentClaimsGrantExactlyOne(t *testing.T) {
	guard, _, events, voterID := setup(t)
	const goroutines = 50

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
		denied  atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := guard.TryClaimVote(context.Background(), voterID)
			if err != nil {
				return
			}
			if res.Granted {
				granted.Add(1)
			} else {
				denied.Add(1)
				guard.RecordDuplicate(context.Background(), voterID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
	assert.Equal(t, int32(goroutines-1), denied.Load())
	assert.Equal(t, goroutines-1, events.Count(security.EventDuplicateVote))
}

type failingStore struct{}

func (failingStore) ClaimVote(context.Context, id.VoterID) error {
	return errors.New("connection refused")
}
