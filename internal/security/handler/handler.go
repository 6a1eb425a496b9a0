// Package handler exposes the security ledger to operators.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/httputil"
	request "ballotguard/pkg/platform/middleware/request"
	pstrings "ballotguard/pkg/platform/strings"
)

// Service is the ledger surface the admin API needs.
type Service interface {
	Query(ctx context.Context, filter security.Filter) ([]security.Event, error)
	Resolve(ctx context.Context, eventID id.SecurityEventID) (*security.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin routes. The caller applies the admin token guard.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/security-events", h.HandleList)
	r.Post("/admin/security-events/{id}/resolve", h.HandleResolve)
}

type eventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	VoterID   *string        `json:"voter_id"`
	Severity  float64        `json:"severity"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
	Resolved  bool           `json:"resolved"`
}

type listResponse struct {
	Events []eventResponse `json:"events"`
	Count  int             `json:"count"`
}

func toResponse(e security.Event) eventResponse {
	resp := eventResponse{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Severity:  e.Severity,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
		Resolved:  e.Resolved,
	}
	if !e.VoterID.IsNil() {
		v := e.VoterID.String()
		resp.VoterID = &v
	}
	if resp.Details == nil {
		resp.Details = map[string]any{}
	}
	return resp
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid security event filter",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list security events",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := listResponse{Events: make([]eventResponse, 0, len(events)), Count: len(events)}
	for _, e := range events {
		resp.Events = append(resp.Events, toResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	eventID, err := id.ParseSecurityEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	event, err := h.service.Resolve(ctx, eventID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to resolve security event",
				"request_id", requestID,
				"event_id", eventID.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(*event))
}

func parseFilter(r *http.Request) (security.Filter, error) {
	q := r.URL.Query()
	var filter security.Filter

	for _, raw := range pstrings.SplitList(strings.Join(q["type"], ",")) {
		t, err := security.ParseEventType(raw)
		if err != nil {
			return filter, err
		}
		filter.Types = append(filter.Types, t)
	}

	if raw := q.Get("voter_id"); raw != "" {
		voterID, err := id.ParseVoterID(raw)
		if err != nil {
			return filter, err
		}
		filter.VoterID = voterID
	}

	if raw := q.Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "resolved must be true or false")
		}
		filter.Resolved = &resolved
	}

	for key, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return filter, dErrors.New(dErrors.CodeInvalidInput, key+" must be an RFC 3339 timestamp")
			}
			*dst = t
		}
	}

	if raw := q.Get("min_severity"); raw != "" {
		sev, err := strconv.ParseFloat(raw, 64)
		if err != nil || sev < 0 || sev > 1 {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "min_severity must be within [0, 1]")
		}
		filter.MinSeverity = sev
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}
