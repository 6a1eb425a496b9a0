package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/platform/sentinel"
)

// OutboxAggregateType tags outbox rows written by this store.
const OutboxAggregateType = "security_event"

// PostgresStore writes security events together with their outbox row in one
// transaction (transactional outbox). The relay publishes the outbox.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON document published for each event.
type outboxPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	VoterID   string         `json:"voter_id,omitempty"`
	Severity  float64        `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func (s *PostgresStore) Append(ctx context.Context, event security.Event) error {
	details, err := json.Marshal(nonNilDetails(event.Details))
	if err != nil {
		return fmt.Errorf("marshal security event details: %w", err)
	}

	payload := outboxPayload{
		ID:        event.ID.String(),
		Type:      string(event.Type),
		Severity:  event.Severity,
		Details:   event.Details,
		CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	var voterID any
	aggregateID := event.ID.String()
	if !event.VoterID.IsNil() {
		voterID = uuid.UUID(event.VoterID)
		payload.VoterID = event.VoterID.String()
		aggregateID = event.VoterID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin security event tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO security_events (id, type, voter_id, severity, details, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, uuid.UUID(event.ID), string(event.Type), voterID, event.Severity, details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), OutboxAggregateType, aggregateID, string(event.Type), payloadBytes, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit security event: %w", err)
	}
	return nil
}

// MarkResolved flips the resolved flag. It is the only mutation the table allows.
func (s *PostgresStore) MarkResolved(ctx context.Context, eventID id.SecurityEventID) (*security.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE security_events SET resolved = TRUE
		WHERE id = $1
		RETURNING id, type, voter_id, severity, details, created_at, resolved
	`, uuid.UUID(eventID))

	var (
		rawID   uuid.UUID
		voterID uuid.NullUUID
		typ     string
		details []byte
		event   security.Event
	)
	if err := row.Scan(&rawID, &typ, &voterID, &event.Severity, &details, &event.CreatedAt, &event.Resolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve security event: %w", err)
	}
	event.ID = id.SecurityEventID(rawID)
	event.Type = security.EventType(typ)
	if voterID.Valid {
		event.VoterID = id.VoterID(voterID.UUID)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &event.Details); err != nil {
			return nil, fmt.Errorf("decode security event details: %w", err)
		}
	}
	return &event, nil
}

func nonNilDetails(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}
