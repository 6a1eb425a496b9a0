// Package store persists voters.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ballotguard/internal/eligibility"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
	txcontext "ballotguard/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists voters in PostgreSQL. Writes join the transaction
// carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ClaimVote flips has_voted with one conditional UPDATE. Concurrent callers
// serialize on the row lock; exactly one sees a row affected.
func (s *PostgresStore) ClaimVote(ctx context.Context, voterID id.VoterID) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE voters SET has_voted = TRUE
		WHERE id = $1 AND has_voted = FALSE
	`, uuid.UUID(voterID))
	if err != nil {
		return fmt.Errorf("claim vote: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim vote rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM voters WHERE id = $1)`, uuid.UUID(voterID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check voter exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrAlreadyUsed
}

// VerificationFlags reads the voter's persisted verification state.
func (s *PostgresStore) VerificationFlags(ctx context.Context, voterID id.VoterID) (id.VerificationFlags, error) {
	var flags id.VerificationFlags
	err := s.db.QueryRowContext(ctx, `
		SELECT otp_verified, biometric_verified FROM voters WHERE id = $1
	`, uuid.UUID(voterID)).Scan(&flags.OTPVerified, &flags.BiometricVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.VerificationFlags{}, sentinel.ErrNotFound
		}
		return id.VerificationFlags{}, fmt.Errorf("read verification flags: %w", err)
	}
	return flags, nil
}

func (s *PostgresStore) Get(ctx context.Context, voterID id.VoterID) (*eligibility.Voter, error) {
	var (
		v     eligibility.Voter
		rawID uuid.UUID
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, contact_handle, has_voted, otp_verified, biometric_verified, created_at
		FROM voters WHERE id = $1
	`, uuid.UUID(voterID)).Scan(&rawID, &v.ContactHandle, &v.HasVoted, &v.Flags.OTPVerified, &v.Flags.BiometricVerified, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get voter: %w", err)
	}
	v.ID = id.VoterID(rawID)
	return &v, nil
}

// Create registers a voter. A duplicate id or contact handle is ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, v *eligibility.Voter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voters (id, contact_handle, has_voted, otp_verified, biometric_verified, created_at)
		VALUES ($1, $2, FALSE, $3, $4, $5)
	`, uuid.UUID(v.ID), v.ContactHandle, v.Flags.OTPVerified, v.Flags.BiometricVerified, v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create voter: %w", err)
	}
	return nil
}
