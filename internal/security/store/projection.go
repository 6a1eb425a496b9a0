package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
)

// Projection serves ledger queries from a pgx pool. The pool may point at a
// read replica; it never writes.
type Projection struct {
	pool *pgxpool.Pool
}

func NewProjection(pool *pgxpool.Pool) *Projection {
	return &Projection{pool: pool}
}

// buildQuery renders the filter as SQL with positional arguments.
func buildQuery(filter security.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, "type = ANY("+arg(types)+")")
	}
	if !filter.VoterID.IsNil() {
		where = append(where, "voter_id = "+arg(uuid.UUID(filter.VoterID)))
	}
	if filter.Resolved != nil {
		where = append(where, "resolved = "+arg(*filter.Resolved))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < "+arg(filter.Until))
	}
	if filter.MinSeverity > 0 {
		where = append(where, "severity >= "+arg(filter.MinSeverity))
	}

	var b strings.Builder
	b.WriteString("SELECT id, type, voter_id, severity, details, created_at, resolved FROM security_events")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id LIMIT ")
	b.WriteString(arg(filter.Limit))
	return b.String(), args
}

func (p *Projection) Query(ctx context.Context, filter security.Filter) ([]security.Event, error) {
	query, args := buildQuery(filter.Normalize())
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (security.Event, error) {
		var (
			rawID   uuid.UUID
			voterID uuid.NullUUID
			typ     string
			details []byte
			event   security.Event
		)
		if err := row.Scan(&rawID, &typ, &voterID, &event.Severity, &details, &event.CreatedAt, &event.Resolved); err != nil {
			return security.Event{}, err
		}
		event.ID = id.SecurityEventID(rawID)
		event.Type = security.EventType(typ)
		if voterID.Valid {
			event.VoterID = id.VoterID(voterID.UUID)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return security.Event{}, fmt.Errorf("decode details: %w", err)
			}
		}
		return event, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan security events: %w", err)
	}
	return events, nil
}
