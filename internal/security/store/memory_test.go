package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) appendEvent(t security.EventType, voter id.VoterID, offset time.Duration) security.Event {
	e := security.Event{
		ID:        id.NewSecurityEventID(),
		Type:      t,
		VoterID:   voter,
		Severity:  0.5,
		Details:   map[string]any{"k": "v"},
		CreatedAt: s.base.Add(offset),
	}
	s.Require().NoError(s.store.Append(context.Background(), e))
	return e
}

func (s *InMemoryStoreSuite) TestAppendIsImmutable() {
	e := s.appendEvent(security.EventDuplicateVote, id.VoterID(uuid.New()), 0)
	e.Details["k"] = "tampered"

	got, err := s.store.Query(context.Background(), security.Filter{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("v", got[0].Details["k"], "caller mutation must not leak into the ledger")

	s.ErrorIs(s.store.Append(context.Background(), got[0]), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestQueryFiltersAndOrders() {
	voter := id.VoterID(uuid.New())
	s.appendEvent(security.EventDuplicateVote, voter, time.Minute)
	s.appendEvent(security.EventBiometricSpoof, voter, 2*time.Minute)
	s.appendEvent(security.EventUnauthorizedAccess, id.VoterID{}, 3*time.Minute)

	all, err := s.store.Query(context.Background(), security.Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(security.EventUnauthorizedAccess, all[0].Type, "newest first")

	byVoter, err := s.store.Query(context.Background(), security.Filter{VoterID: voter})
	s.Require().NoError(err)
	s.Len(byVoter, 2)

	byType, err := s.store.Query(context.Background(), security.Filter{Types: []security.EventType{security.EventDuplicateVote}})
	s.Require().NoError(err)
	s.Len(byType, 1)

	limited, err := s.store.Query(context.Background(), security.Filter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *InMemoryStoreSuite) TestMarkResolved() {
	e := s.appendEvent(security.EventAnomalousBehavior, id.VoterID(uuid.New()), 0)

	resolved, err := s.store.MarkResolved(context.Background(), e.ID)
	s.Require().NoError(err)
	s.True(resolved.Resolved)
	s.Equal(e.Type, resolved.Type)

	again, err := s.store.MarkResolved(context.Background(), e.ID)
	s.Require().NoError(err)
	s.True(again.Resolved)

	_, err = s.store.MarkResolved(context.Background(), id.NewSecurityEventID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	unresolved := false
	open, err := s.store.Query(context.Background(), security.Filter{Resolved: &unresolved})
	s.Require().NoError(err)
	s.Empty(open)
}
