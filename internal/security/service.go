package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"

	"ballotguard/internal/security/metrics"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/sentinel"
	txcontext "ballotguard/pkg/platform/tx"
	"ballotguard/pkg/requestcontext"
)

// Store is the append-only write side of the ledger.
type Store interface {
	Append(ctx context.Context, event Event) error
	MarkResolved(ctx context.Context, eventID id.SecurityEventID) (*Event, error)
}

// Reader is the read-only query projection.
type Reader interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// Service records and queries security events.
type Service struct {
	store   Store
	reader  Reader
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the ledger. reader may be the same object as store.
func NewService(store Store, reader Reader, opts ...Option) *Service {
	s := &Service{store: store, reader: reader, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends an event and returns it as stored. The write never joins an
// ambient transaction, so a rollback of the caller's unit of work cannot erase
// evidence of a rejected attempt.
func (s *Service) Record(ctx context.Context, event Event) (*Event, error) {
	if !event.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown security event type")
	}
	if math.IsNaN(event.Severity) || event.Severity < 0 || event.Severity > 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "severity must be within [0, 1]")
	}

	event.ID = id.NewSecurityEventID()
	event.Resolved = false
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	details := make(map[string]any, len(event.Details)+2)
	maps.Copy(details, event.Details)
	if rid := requestcontext.RequestID(ctx); rid != "" {
		details["request_id"] = rid
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		if _, ok := details["client_ip"]; !ok {
			details["client_ip"] = ip
		}
	}
	event.Details = details

	if err := s.store.Append(txcontext.Without(ctx), event); err != nil {
		s.metrics.IncrementRecordFailure()
		s.logger.ErrorContext(ctx, "failed to record security event",
			"type", event.Type,
			"voter_id", voterAttr(event.VoterID),
			"error", err,
		)
		return nil, fmt.Errorf("append security event: %w", err)
	}

	s.metrics.IncrementRecorded(string(event.Type))
	s.logger.WarnContext(ctx, "security event recorded",
		"event_id", event.ID.String(),
		"type", event.Type,
		"voter_id", voterAttr(event.VoterID),
		"severity", event.Severity,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &event, nil
}

// RecordUnauthorized records an unauthenticated access attempt. It is
// best-effort: the caller is already rejecting the request.
func (s *Service) RecordUnauthorized(ctx context.Context, reason string) {
	_, err := s.Record(ctx, Event{
		Type:     EventUnauthorizedAccess,
		Severity: 0.3,
		Details: map[string]any{
			"reason":     reason,
			"user_agent": requestcontext.UserAgent(ctx),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "unauthorized access not recorded", "error", err)
	}
}

// Query returns events matching filter, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	events, err := s.reader.Query(ctx, filter.Normalize())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query security events")
	}
	return events, nil
}

// Resolve flips the resolved flag. Resolving twice is a no-op.
func (s *Service) Resolve(ctx context.Context, eventID id.SecurityEventID) (*Event, error) {
	event, err := s.store.MarkResolved(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "security event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve security event")
	}
	s.logger.InfoContext(ctx, "security event resolved",
		"event_id", eventID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return event, nil
}

func voterAttr(v id.VoterID) string {
	if v.IsNil() {
		return ""
	}
	return v.String()
}
