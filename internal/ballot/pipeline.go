package ballot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ballotguard/internal/ballot/metrics"
	"ballotguard/internal/eligibility"
	"ballotguard/internal/risk"
	"ballotguard/internal/security"
	"ballotguard/internal/vote"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
	"ballotguard/pkg/requestcontext"
)

type RiskAssessor interface {
	Assess(ctx context.Context, voterID id.VoterID, evidence risk.Evidence) (*risk.Assessment, error)
}

type Claimer interface {
	TryClaimVote(ctx context.Context, voterID id.VoterID) (eligibility.ClaimResult, error)
	RecordDuplicate(ctx context.Context, voterID id.VoterID)
}

type Committer interface {
	Commit(ctx context.Context, voterID id.VoterID, choiceID id.ChoiceID) (*vote.Receipt, error)
	AnchorVote(ctx context.Context, v *vote.Vote) vote.AnchorResult
}

type EventRecorder interface {
	Record(ctx context.Context, event security.Event) (*security.Event, error)
}

// TxRunner runs fn inside one storage transaction carried by the context
// passed to fn. An error from fn rolls the transaction back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Dispatcher anchors votes in the background. Submit reports false when the
// vote was not queued; it is then left to reconciliation.
type Dispatcher interface {
	Submit(v *vote.Vote) bool
}

// NoTx runs fn directly. It serves stores that are linearizable on their own.
type NoTx struct{}

func (NoTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const (
	unauthorizedSeverity = 0.4
	defaultStepUpWindow  = 5 * time.Minute
)

var errDuplicate = dErrors.New(dErrors.CodeAlreadyVoted, "voter already cast a ballot")

// Pipeline runs one vote cast to a terminal state.
type Pipeline struct {
	scorer           RiskAssessor
	guard            Claimer
	committer        Committer
	recorder         EventRecorder
	tx               TxRunner
	dispatcher       Dispatcher
	requireBiometric bool
	stepUpWindow     time.Duration
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTxRunner sets the transaction boundary for claim and commit.
func WithTxRunner(tx TxRunner) Option {
	return func(p *Pipeline) { p.tx = tx }
}

// WithAsyncAnchoring returns before the ledger call and hands the vote to d.
func WithAsyncAnchoring(d Dispatcher) Option {
	return func(p *Pipeline) { p.dispatcher = d }
}

// WithBiometricRequired makes biometric verification a required session flag.
func WithBiometricRequired(required bool) Option {
	return func(p *Pipeline) { p.requireBiometric = required }
}

// WithStepUpWindow sets how recent a re-verification must be to admit a
// challenged request.
func WithStepUpWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.stepUpWindow = d }
}

func NewPipeline(scorer RiskAssessor, guard Claimer, committer Committer, recorder EventRecorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:       scorer,
		guard:        guard,
		committer:    committer,
		recorder:     recorder,
		tx:           NoTx{},
		stepUpWindow: defaultStepUpWindow,
		logger:       slog.Default(),
		tracer:       otel.Tracer("ballotguard/ballot"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cast runs the state machine. Every rejection is returned as a domain error
// with its code; once the vote is committed Cast always succeeds, with
// LedgerConfirmed=false when anchoring did not complete.
func (p *Pipeline) Cast(ctx context.Context, req CastRequest) (*CastResult, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "ballot.cast", trace.WithAttributes(
		attribute.String("voter.id", req.VoterID.String()),
	))
	defer span.End()

	finish := func(s State, err error) {
		span.SetAttributes(attribute.String("ballot.state", string(s)))
		if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(s))
		}
		p.metrics.ObserveOutcome(string(s), time.Since(start))
	}

	if !p.eligibleSession(req.Flags) {
		p.recordUnauthorized(ctx, req)
		err := dErrors.New(dErrors.CodeUnauthorized, "session is missing required verification")
		finish(StateReceived, err)
		return nil, err
	}

	assessment, err := p.scorer.Assess(ctx, req.VoterID, req.Evidence)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "risk assessment failed")
		finish(StateReceived, err)
		return nil, err
	}
	span.AddEvent(string(StateRiskAssessed))

	switch p.admit(ctx, req, assessment) {
	case StateBlocked:
		err := dErrors.New(dErrors.CodeRiskBlocked, "vote blocked by risk assessment")
		finish(StateBlocked, err)
		return nil, err
	case StateChallenged:
		err := dErrors.New(dErrors.CodeReverificationRequired, "re-verification required")
		finish(StateChallenged, err)
		return nil, err
	}
	span.AddEvent(string(StateAllowed))

	// Past this point the request runs to a terminal state even if the client
	// goes away.
	detached := context.WithoutCancel(ctx)

	var (
		receipt   *vote.Receipt
		claimLost bool
	)
	err = p.tx.RunInTx(detached, func(txCtx context.Context) error {
		claim, err := p.guard.TryClaimVote(txCtx, req.VoterID)
		if err != nil {
			return err
		}
		if !claim.Granted {
			claimLost = true
			return errDuplicate
		}
		receipt, err = p.committer.Commit(txCtx, req.VoterID, req.ChoiceID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, errDuplicate) || dErrors.HasCode(err, dErrors.CodeAlreadyVoted):
			// The claim transaction has ended; the event write gets its own connection.
			if claimLost {
				p.guard.RecordDuplicate(detached, req.VoterID)
			}
			p.logger.WarnContext(ctx, "duplicate vote rejected",
				"voter_id", req.VoterID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			finish(StateDuplicateRejected, err)
			return nil, errDuplicate
		case dErrors.HasCode(err, dErrors.CodeUnauthorized):
			finish(StateEligibilityChecked, err)
			return nil, err
		default:
			var de *dErrors.Error
			if !errors.As(err, &de) {
				err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
			}
			p.logger.ErrorContext(ctx, "vote not recorded",
				"voter_id", req.VoterID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			finish(StateEligibilityChecked, err)
			return nil, err
		}
	}
	span.AddEvent(string(StateCommitted))

	result := &CastResult{
		VoteID:       receipt.Vote.ID,
		ReceiptNonce: receipt.Nonce,
		State:        StateCommitted,
	}
	p.anchor(detached, receipt.Vote, result)

	p.logger.InfoContext(ctx, "vote recorded",
		"vote_id", result.VoteID.String(),
		"ledger_confirmed", result.LedgerConfirmed,
		"aggregate_risk", assessment.AggregateRisk,
		"request_id", requestcontext.RequestID(ctx),
	)
	finish(result.State, nil)
	return result, nil
}

func (p *Pipeline) eligibleSession(flags id.VerificationFlags) bool {
	if !flags.OTPVerified {
		return false
	}
	return !p.requireBiometric || flags.BiometricVerified
}

// admit maps the assessment to the next state. A challenge is admitted when
// the session was re-verified within the step-up window; a block never is.
func (p *Pipeline) admit(ctx context.Context, req CastRequest, a *risk.Assessment) State {
	switch a.Recommendation {
	case risk.RecommendBlock:
		return StateBlocked
	case risk.RecommendChallenge:
		if req.Flags.SteppedUpWithin(requestcontext.Now(ctx), p.stepUpWindow) {
			p.metrics.IncrementStepUpAdmission()
			p.logger.InfoContext(ctx, "risk challenge satisfied by recent step-up",
				"voter_id", req.VoterID.String(),
				"aggregate_risk", a.AggregateRisk,
			)
			return StateAllowed
		}
		return StateChallenged
	default:
		return StateAllowed
	}
}

func (p *Pipeline) anchor(ctx context.Context, v *vote.Vote, result *CastResult) {
	if p.dispatcher != nil {
		p.dispatcher.Submit(v)
		result.State = StateLedgerUnconfirmed
		return
	}

	anchored := p.committer.AnchorVote(ctx, v)
	if !anchored.Confirmed {
		result.State = StateLedgerUnconfirmed
		return
	}
	result.TransactionReference = anchored.Reference
	result.LedgerConfirmed = true
	result.State = StateLedgerConfirmed
}

// recordUnauthorized writes the rejection to the security ledger. The request
// is rejected whether or not the write succeeds.
func (p *Pipeline) recordUnauthorized(ctx context.Context, req CastRequest) {
	p.logger.WarnContext(ctx, "unauthorized access - verification flags missing",
		"voter_id", req.VoterID.String(),
		"otp_verified", req.Flags.OTPVerified,
		"biometric_verified", req.Flags.BiometricVerified,
		"request_id", requestcontext.RequestID(ctx),
	)
	_, err := p.recorder.Record(ctx, security.Event{
		Type:     security.EventUnauthorizedAccess,
		VoterID:  req.VoterID,
		Severity: unauthorizedSeverity,
		Details: map[string]any{
			"reason":             "verification flags missing",
			"otp_verified":       req.Flags.OTPVerified,
			"biometric_verified": req.Flags.BiometricVerified,
			"biometric_required": p.requireBiometric,
		},
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "unauthorized access not recorded", "error", err)
	}
}
