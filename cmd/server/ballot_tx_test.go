package main

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/httputil"
)

func closedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("postgres", "postgres://ballotguard@127.0.0.1:1/ballotguard?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return db
}

func TestBallotPostgresTx_FailuresBeforeClaimAreInternal(t *testing.T) {
	t.Run("begin fails", func(t *testing.T) {
		called := false
		err := newBallotPostgresTx(closedDB(t)).RunInTx(context.Background(), func(context.Context) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.False(t, called)
		assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
		assert.Equal(t, http.StatusInternalServerError, httputil.StatusFor(dErrors.CodeOf(err)))
	})

	t.Run("context already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := newBallotPostgresTx(closedDB(t)).RunInTx(ctx, func(context.Context) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, httputil.StatusFor(dErrors.CodeOf(err)))
	})
}
