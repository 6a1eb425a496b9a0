//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ballotguard/internal/security"
	"ballotguard/internal/security/store"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
	"ballotguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *store.PostgresStore
	projection *store.Projection
	outbox     *store.OutboxStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.projection = store.NewProjection(s.postgres.Pool)
	s.outbox = store.NewOutbox(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "security_events", "outbox"))
}

func (s *PostgresStoreSuite) event(t security.EventType, voter id.VoterID) security.Event {
	return security.Event{
		ID:        id.NewSecurityEventID(),
		Type:      t,
		VoterID:   voter,
		Severity:  0.7,
		Details:   map[string]any{"reason": "test"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAppendWritesEventAndOutbox() {
	ctx := context.Background()
	voter := id.VoterID(uuid.New())
	e := s.event(security.EventDuplicateVote, voter)
	s.Require().NoError(s.store.Append(ctx, e))

	got, err := s.projection.Query(ctx, security.Filter{VoterID: voter})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(e.ID, got[0].ID)
	s.Equal("test", got[0].Details["reason"])

	var published []store.OutboxEntry
	n, err := s.outbox.ProcessPending(ctx, 10, func(_ context.Context, entries []store.OutboxEntry) error {
		published = entries
		return nil
	})
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(voter.String(), published[0].AggregateID)
	s.Equal("duplicate_vote", published[0].EventType)

	n, err = s.outbox.ProcessPending(ctx, 10, func(context.Context, []store.OutboxEntry) error { return nil })
	s.Require().NoError(err)
	s.Zero(n, "published rows are not handed out again")
}

func (s *PostgresStoreSuite) TestFailedPublishKeepsRowsPending() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.event(security.EventUnauthorizedAccess, id.VoterID{})))

	_, err := s.outbox.ProcessPending(ctx, 10, func(context.Context, []store.OutboxEntry) error {
		return errors.New("broker unavailable")
	})
	s.Error(err)

	n, err := s.outbox.ProcessPending(ctx, 10, func(context.Context, []store.OutboxEntry) error { return nil })
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresStoreSuite) TestOnlyResolvedMayChange() {
	ctx := context.Background()
	e := s.event(security.EventBiometricSpoof, id.VoterID(uuid.New()))
	s.Require().NoError(s.store.Append(ctx, e))

	resolved, err := s.store.MarkResolved(ctx, e.ID)
	s.Require().NoError(err)
	s.True(resolved.Resolved)

	_, err = s.postgres.DB.ExecContext(ctx, `UPDATE security_events SET severity = 0 WHERE id = $1`, uuid.UUID(e.ID))
	s.Error(err, "trigger rejects edits other than resolving")

	_, err = s.postgres.DB.ExecContext(ctx, `DELETE FROM security_events WHERE id = $1`, uuid.UUID(e.ID))
	s.Error(err, "trigger rejects deletes")

	_, err = s.store.MarkResolved(ctx, id.NewSecurityEventID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
