//go:build integration

package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ballotguard/internal/ballot"
	"ballotguard/internal/eligibility"
	eligibilitystore "ballotguard/internal/eligibility/store"
	"ballotguard/internal/ledger"
	"ballotguard/internal/risk"
	"ballotguard/internal/security"
	securitystore "ballotguard/internal/security/store"
	"ballotguard/internal/vote"
	votestore "ballotguard/internal/vote/store"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/testutil/containers"
)

type allowAll struct{}

func (allowAll) Assess(_ context.Context, voterID id.VoterID, _ risk.Evidence) (*risk.Assessment, error) {
	return &risk.Assessment{VoterID: voterID, Recommendation: risk.RecommendAllow}, nil
}

// brokenVotes fails every insert after the claim has been taken.
type brokenVotes struct {
	*votestore.PostgresStore
}

func (brokenVotes) Insert(context.Context, *vote.Vote) error {
	return errors.New("insert vote: disk full")
}

type CastPipelineSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestCastPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CastPipelineSuite))
}

func (s *CastPipelineSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *CastPipelineSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"outbox", "security_events", "votes", "voters"))
}

// openDB opens a dedicated pool so tests can size it.
func (s *CastPipelineSuite) openDB(maxConns int) *sql.DB {
	db, err := sql.Open("postgres", s.postgres.URL)
	s.Require().NoError(err)
	db.SetMaxOpenConns(maxConns)
	s.T().Cleanup(func() { _ = db.Close() })
	return db
}

func (s *CastPipelineSuite) pipeline(db *sql.DB, votes vote.Store) *ballot.Pipeline {
	events := security.NewService(securitystore.NewPostgres(db), securitystore.NewProjection(s.postgres.Pool))
	guard := eligibility.NewGuard(eligibilitystore.NewPostgres(db), events)
	committer := vote.NewCommitter(votes, ledger.NewLocalChain())
	runner := &ballotPostgresTx{db: db, timeout: 2 * time.Second}
	return ballot.NewPipeline(allowAll{}, guard, committer, events, ballot.WithTxRunner(runner))
}

func (s *CastPipelineSuite) createVoter(db *sql.DB) id.VoterID {
	voterID := id.VoterID(uuid.New())
	s.Require().NoError(eligibilitystore.NewPostgres(db).Create(context.Background(), &eligibility.Voter{
		ID:            voterID,
		ContactHandle: uuid.NewString() + "@example.test",
		Flags:         id.VerificationFlags{OTPVerified: true},
		CreatedAt:     time.Now(),
	}))
	return voterID
}

func castRequest(voterID id.VoterID) ballot.CastRequest {
	return ballot.CastRequest{
		VoterID:     voterID,
		Flags:       id.VerificationFlags{OTPVerified: true},
		ChoiceID:    "candidate-a",
		ChoiceLabel: "Candidate A",
	}
}

func (s *CastPipelineSuite) count(query string, args ...any) int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func (s *CastPipelineSuite) votesFor(voterID id.VoterID) int {
	return s.count(`SELECT COUNT(*) FROM votes WHERE voter_id = $1`, uuid.UUID(voterID))
}

func (s *CastPipelineSuite) duplicateEventsFor(voterID id.VoterID) int {
	return s.count(`SELECT COUNT(*) FROM security_events WHERE type = 'duplicate_vote' AND voter_id = $1`, uuid.UUID(voterID))
}

func (s *CastPipelineSuite) castConcurrently(p *ballot.Pipeline, voterID id.VoterID, n int) (successes, duplicates int32) {
	var (
		wg    sync.WaitGroup
		ok    atomic.Int32
		dup   atomic.Int32
		start = make(chan struct{})
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := p.Cast(context.Background(), castRequest(voterID))
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeAlreadyVoted):
				dup.Add(1)
			default:
				s.T().Logf("unexpected cast error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return ok.Load(), dup.Load()
}

func (s *CastPipelineSuite) TestConcurrentCastsStoreExactlyOneVote() {
	db := s.openDB(10)
	voterID := s.createVoter(db)
	const requests = 30

	successes, duplicates := s.castConcurrently(s.pipeline(db, votestore.NewPostgres(db)), voterID, requests)

	s.EqualValues(1, successes)
	s.EqualValues(requests-1, duplicates)
	s.Equal(1, s.votesFor(voterID), "the votes table never holds two rows for one voter")
	s.Equal(requests-1, s.duplicateEventsFor(voterID), "every rejected duplicate leaves a security event")
}

// TestDuplicatesOnSingleConnectionPool holds every request to one pooled
// connection. The duplicate_vote write must not need a second connection
// while the claim transaction is still open.
func (s *CastPipelineSuite) TestDuplicatesOnSingleConnectionPool() {
	db := s.openDB(1)
	voterID := s.createVoter(db)
	p := s.pipeline(db, votestore.NewPostgres(db))

	_, err := p.Cast(context.Background(), castRequest(voterID))
	s.Require().NoError(err)

	start := time.Now()
	_, err = p.Cast(context.Background(), castRequest(voterID))
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVoted))
	s.Less(time.Since(start), time.Second, "duplicate rejection must not wait out the transaction deadline")
	s.Equal(1, s.duplicateEventsFor(voterID))

	successes, duplicates := s.castConcurrently(p, voterID, 5)
	s.Zero(successes)
	s.EqualValues(5, duplicates)
	s.Equal(6, s.duplicateEventsFor(voterID))
	s.Equal(1, s.votesFor(voterID))
}

func (s *CastPipelineSuite) TestFailedInsertReleasesClaim() {
	db := s.openDB(5)
	voterID := s.createVoter(db)

	_, err := s.pipeline(db, brokenVotes{votestore.NewPostgres(db)}).Cast(context.Background(), castRequest(voterID))
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	s.Zero(s.votesFor(voterID))

	v, err := eligibilitystore.NewPostgres(db).Get(context.Background(), voterID)
	s.Require().NoError(err)
	s.False(v.HasVoted, "a rolled back insert must give the claim back")

	result, err := s.pipeline(db, votestore.NewPostgres(db)).Cast(context.Background(), castRequest(voterID))
	s.Require().NoError(err)
	s.True(result.LedgerConfirmed)
	s.Equal(1, s.votesFor(voterID))
	s.Zero(s.duplicateEventsFor(voterID))
}
