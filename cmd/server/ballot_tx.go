package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "ballotguard/pkg/domain-errors"
	txcontext "ballotguard/pkg/platform/tx"
)

const defaultBallotTxTimeout = 5 * time.Second

// ballotPostgresTx runs the claim and the vote insert in one transaction so a
// failed insert releases the claim.
type ballotPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newBallotPostgresTx(db *sql.DB) *ballotPostgresTx {
	return &ballotPostgresTx{db: db}
}

func (t *ballotPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultBallotTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin ballot transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	// A failed commit may still have been applied; a retry then sees the
	// voter as having voted.
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit ballot transaction")
	}
	return nil
}
