// Package store persists votes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ballotguard/internal/vote"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
	txcontext "ballotguard/pkg/platform/tx"
)

const uniqueViolation = "23505"

const voteColumns = `id, voter_id, choice_id, vote_commitment, COALESCE(ledger_reference, ''),
	ledger_confirmed, ledger_attempts, COALESCE(ledger_last_error, ''), created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, v *vote.Vote) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO votes (id, voter_id, choice_id, vote_commitment, ledger_confirmed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, uuid.UUID(v.ID), uuid.UUID(v.VoterID), v.ChoiceID.String(), v.Commitment, v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, voteID id.VoteID) (*vote.Vote, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+voteColumns+` FROM votes WHERE id = $1`, uuid.UUID(voteID))
	v, err := scanVote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return v, nil
}

// MarkAnchored confirms a vote. Confirmation is one-way; a confirmed vote
// keeps its first reference.
func (s *PostgresStore) MarkAnchored(ctx context.Context, voteID id.VoteID, reference string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE votes
		SET ledger_confirmed = TRUE, ledger_reference = $2, ledger_attempts = ledger_attempts + 1, ledger_last_error = NULL
		WHERE id = $1 AND ledger_confirmed = FALSE
	`, uuid.UUID(voteID), reference)
	if err != nil {
		return fmt.Errorf("mark vote anchored: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordAnchorFailure(ctx context.Context, voteID id.VoteID, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE votes
		SET ledger_attempts = ledger_attempts + 1, ledger_last_error = $2
		WHERE id = $1 AND ledger_confirmed = FALSE
	`, uuid.UUID(voteID), reason)
	if err != nil {
		return fmt.Errorf("record anchor failure: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnconfirmed(ctx context.Context, limit int) ([]*vote.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+voteColumns+` FROM votes
		WHERE ledger_confirmed = FALSE
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unconfirmed votes: %w", err)
	}
	defer rows.Close()

	var out []*vote.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVote(row scanner) (*vote.Vote, error) {
	var (
		v       vote.Vote
		rawID   uuid.UUID
		voterID uuid.UUID
		choice  string
	)
	if err := row.Scan(&rawID, &voterID, &choice, &v.Commitment, &v.LedgerReference,
		&v.LedgerConfirmed, &v.LedgerAttempts, &v.LedgerLastError, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.ID = id.VoteID(rawID)
	v.VoterID = id.VoterID(voterID)
	v.ChoiceID = id.ChoiceID(choice)
	return &v, nil
}
