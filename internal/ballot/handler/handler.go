// Package handler exposes the vote-cast pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ballotguard/internal/ballot"
	"ballotguard/internal/vote"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/platform/httputil"
	"ballotguard/pkg/requestcontext"
)

// Service casts votes.
type Service interface {
	Cast(ctx context.Context, req ballot.CastRequest) (*ballot.CastResult, error)
}

// ReceiptVerifier checks a voter's receipt against the stored commitment.
type ReceiptVerifier interface {
	VerifyReceipt(ctx context.Context, voteID id.VoteID, choiceID id.ChoiceID, nonceHex string) (*vote.Verification, error)
}

// Handler wires vote endpoints to the cast pipeline.
type Handler struct {
	service  Service
	verifier ReceiptVerifier
	logger   *slog.Logger
}

func New(service Service, verifier ReceiptVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

// Register mounts the session-protected cast endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/votes", h.HandleCast)
}

// RegisterPublic mounts endpoints that need no session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/votes/verify", h.HandleVerify)
}

// HandleCast handles POST /votes.
func (h *Handler) HandleCast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	voterID := requestcontext.VoterID(ctx)
	if voterID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CastVoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Cast(ctx, ballot.CastRequest{
		VoterID:     voterID,
		Flags:       requestcontext.Verification(ctx),
		ChoiceID:    req.ParsedChoiceID(),
		ChoiceLabel: req.ChoiceLabel,
		Evidence:    req.RiskEvidence(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "vote cast rejected",
			"request_id", requestID,
			"voter_id", voterID.String(),
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vote cast",
		"request_id", requestID,
		"vote_id", result.VoteID.String(),
		"state", result.State,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromCastResult(result))
}

// HandleVerify handles POST /votes/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyReceiptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.verifier.VerifyReceipt(ctx, req.parsedVoteID, req.parsedChoiceID, req.Nonce)
	if err != nil {
		h.logger.WarnContext(ctx, "receipt verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVerification(result))
}
