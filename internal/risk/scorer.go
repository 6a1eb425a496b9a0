package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ballotguard/internal/risk/metrics"
	"ballotguard/internal/security"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/requestcontext"
)

// Collector produces one signal from the evidence. Implementations must
// return a zero signal when their evidence section is missing.
type Collector interface {
	Name() CollectorName
	Collect(ctx context.Context, voterID id.VoterID, evidence Evidence) (Signal, error)
}

// EventRecorder is the security ledger port.
type EventRecorder interface {
	Record(ctx context.Context, event security.Event) (*security.Event, error)
}

var errCollectorPanic = errors.New("collector panicked")

// Scorer runs collectors in parallel and reduces their signals.
type Scorer struct {
	collectors []Collector
	weights    Weights
	thresholds Thresholds
	timeout    time.Duration
	recorder   EventRecorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithCollectorTimeout bounds each collector individually.
func WithCollectorTimeout(d time.Duration) Option {
	return func(s *Scorer) { s.timeout = d }
}

// DefaultThresholds are the recommendation bands used when none are configured.
var DefaultThresholds = Thresholds{Block: 0.6, Challenge: 0.3, ForcedBlock: 0.9, FailureLevel: 0.2}

func NewScorer(collectors []Collector, weights Weights, thresholds Thresholds, recorder EventRecorder, opts ...Option) *Scorer {
	s := &Scorer{
		collectors: collectors,
		weights:    maps.Clone(weights),
		thresholds: thresholds,
		timeout:    500 * time.Millisecond,
		recorder:   recorder,
		logger:     slog.Default(),
		tracer:     otel.Tracer("ballotguard/risk"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type collectorResult struct {
	name   CollectorName
	signal Signal
	err    error
	kind   string
}

// Assess scores the request. Collector failures never fail the assessment;
// they score zero and are logged to the ledger as low-severity anomalies.
// A non-allow assessment is recorded before Assess returns, and a failure to
// record it is returned as an error.
func (s *Scorer) Assess(ctx context.Context, voterID id.VoterID, evidence Evidence) (*Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "risk.assess")
	defer span.End()

	results := s.collect(ctx, voterID, evidence)

	assessment := &Assessment{
		VoterID:    voterID,
		Scores:     make(map[CollectorName]float64, len(results)),
		Signals:    make(map[CollectorName]Signal, len(results)),
		AssessedAt: requestcontext.Now(ctx),
	}
	for _, r := range results {
		if r.err != nil {
			assessment.Scores[r.name] = 0
			assessment.Failures = append(assessment.Failures, r.name)
			s.metrics.IncrementCollectorFailure(string(r.name), r.kind)
			s.recordFailure(ctx, voterID, r)
			continue
		}
		r.signal.Severity = clamp01(r.signal.Severity)
		assessment.Scores[r.name] = r.signal.Severity
		assessment.Signals[r.name] = r.signal
	}

	assessment.AggregateRisk = Aggregate(s.weights, assessment.Scores)
	assessment.Recommendation, assessment.Forced = Recommend(s.thresholds, assessment.AggregateRisk, assessment.Scores)
	s.metrics.ObserveAssessment(string(assessment.Recommendation), assessment.AggregateRisk)

	span.SetAttributes(
		attribute.Float64("risk.aggregate", assessment.AggregateRisk),
		attribute.String("risk.recommendation", string(assessment.Recommendation)),
		attribute.Bool("risk.forced", assessment.Forced),
	)

	if assessment.Recommendation == RecommendAllow {
		return assessment, nil
	}

	if _, err := s.recorder.Record(ctx, s.assessmentEvent(assessment)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "risk event not recorded")
		return nil, fmt.Errorf("record risk assessment: %w", err)
	}
	s.logger.WarnContext(ctx, "risk assessment not allowed",
		"voter_id", voterID.String(),
		"recommendation", assessment.Recommendation,
		"aggregate", assessment.AggregateRisk,
		"forced", assessment.Forced,
		"request_id", requestcontext.RequestID(ctx),
	)
	return assessment, nil
}

// collect fans out to every collector with its own timeout. Results are
// returned in collector order.
func (s *Scorer) collect(ctx context.Context, voterID id.VoterID, evidence Evidence) []collectorResult {
	results := make([]collectorResult, len(s.collectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range s.collectors {
		g.Go(func() error {
			results[i] = s.runCollector(gctx, c, voterID, evidence)
			// Failures are absorbed so one collector never cancels the others.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runCollector enforces the timeout even when a collector ignores its context.
func (s *Scorer) runCollector(ctx context.Context, c Collector, voterID id.VoterID, evidence Evidence) collectorResult {
	name := c.Name()
	ctx, span := s.tracer.Start(ctx, "risk.collect", trace.WithAttributes(attribute.String("risk.collector", string(name))))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan collectorResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- collectorResult{name: name, err: fmt.Errorf("%w: %v", errCollectorPanic, rec), kind: "panic"}
			}
		}()
		signal, err := c.Collect(ctx, voterID, evidence)
		if err != nil {
			done <- collectorResult{name: name, err: err, kind: "error"}
			return
		}
		done <- collectorResult{name: name, signal: signal}
	}()

	var r collectorResult
	select {
	case r = <-done:
	case <-ctx.Done():
		r = collectorResult{name: name, err: fmt.Errorf("collector %s: %w", name, ctx.Err()), kind: "timeout"}
	}
	s.metrics.ObserveCollectorLatency(string(name), time.Since(start))
	if r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.kind)
	}
	return r
}

// recordFailure writes the collector failure as a low-severity anomaly. It is
// best-effort; the failure already scored zero.
func (s *Scorer) recordFailure(ctx context.Context, voterID id.VoterID, r collectorResult) {
	s.logger.WarnContext(ctx, "risk collector failed",
		"collector", r.name,
		"kind", r.kind,
		"voter_id", voterID.String(),
		"error", r.err,
	)
	_, err := s.recorder.Record(ctx, security.Event{
		Type:     security.EventAnomalousBehavior,
		VoterID:  voterID,
		Severity: s.thresholds.FailureLevel,
		Details: map[string]any{
			"reason":    "collector_failure",
			"collector": string(r.name),
			"kind":      r.kind,
			"error":     r.err.Error(),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "collector failure not recorded", "collector", r.name, "error", err)
	}
}

// assessmentEvent classifies a non-allow assessment. A biometric-dominated
// assessment is a suspected spoof; everything else is anomalous behavior.
func (s *Scorer) assessmentEvent(a *Assessment) security.Event {
	eventType := security.EventAnomalousBehavior
	dominant := Dominant(s.weights, a.Scores)
	if a.Forced {
		dominant = forcedBy(a.Scores, s.thresholds.ForcedBlock, dominant)
	}
	if dominant == CollectorBiometric && a.Signals[CollectorBiometric].IsAnomalous {
		eventType = security.EventBiometricSpoof
	}

	severity := a.AggregateRisk
	if a.Forced {
		severity = max(severity, MaxScore(a.Scores))
	}

	scores := make(map[string]any, len(a.Scores))
	reasons := make(map[string]any, len(a.Signals))
	for name, score := range a.Scores {
		scores[string(name)] = score
		if sig, ok := a.Signals[name]; ok && len(sig.Reasons) > 0 {
			reasons[string(name)] = sig.Reasons
		}
	}
	failures := make([]string, len(a.Failures))
	for i, f := range a.Failures {
		failures[i] = string(f)
	}

	return security.Event{
		Type:     eventType,
		VoterID:  a.VoterID,
		Severity: severity,
		Details: map[string]any{
			"recommendation":   string(a.Recommendation),
			"aggregate_risk":   a.AggregateRisk,
			"forced":           a.Forced,
			"dominant":         string(dominant),
			"collector_scores": scores,
			"reasons":          reasons,
			"failed":           failures,
		},
	}
}

// forcedBy returns the collector that triggered a forced block, preferring
// biometric when several did.
func forcedBy(scores map[CollectorName]float64, level float64, fallback CollectorName) CollectorName {
	if scores[CollectorBiometric] >= level {
		return CollectorBiometric
	}
	for _, name := range []CollectorName{CollectorDevice, CollectorBehavioral, CollectorNetwork} {
		if scores[name] >= level {
			return name
		}
	}
	return fallback
}
