package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OutboxEntry is one pending stream message.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStore hands pending outbox rows to a publisher. Rows are locked with
// SKIP LOCKED so several relays can run side by side.
type OutboxStore struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// ProcessPending locks up to limit unpublished rows, passes them to publish and
// marks them published when it succeeds. On failure the attempt is recorded and
// the rows stay pending. Returns the number of rows published.
func (s *OutboxStore) ProcessPending(ctx context.Context, limit int, publish func(context.Context, []OutboxEntry) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("select pending outbox: %w", err)
	}
	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID.String()
	}

	if pubErr := publish(ctx, entries); pubErr != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox SET attempts = attempts + 1, last_error = $2
			WHERE id = ANY($1::uuid[])
		`, pq.Array(ids), truncate(pubErr.Error(), 512))
		if err != nil {
			return 0, fmt.Errorf("record outbox failure: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit outbox failure: %w", err)
		}
		return 0, pubErr
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE outbox SET published_at = NOW(), attempts = attempts + 1, last_error = NULL
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return len(entries), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
