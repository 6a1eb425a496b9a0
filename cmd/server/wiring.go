package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"ballotguard/internal/ballot"
	ballothandler "ballotguard/internal/ballot/handler"
	ballotmetrics "ballotguard/internal/ballot/metrics"
	"ballotguard/internal/eligibility"
	eligibilitystore "ballotguard/internal/eligibility/store"
	"ballotguard/internal/identity"
	"ballotguard/internal/ledger"
	ledgermetrics "ballotguard/internal/ledger/metrics"
	"ballotguard/internal/ledger/reconcile"
	"ballotguard/internal/platform/config"
	"ballotguard/internal/platform/kafka"
	platformmetrics "ballotguard/internal/platform/metrics"
	"ballotguard/internal/platform/postgres"
	platformredis "ballotguard/internal/platform/redis"
	"ballotguard/internal/risk"
	"ballotguard/internal/risk/collectors"
	"ballotguard/internal/risk/device"
	"ballotguard/internal/risk/history"
	riskmetrics "ballotguard/internal/risk/metrics"
	"ballotguard/internal/security"
	securityhandler "ballotguard/internal/security/handler"
	securitymetrics "ballotguard/internal/security/metrics"
	"ballotguard/internal/security/outbox"
	securitystore "ballotguard/internal/security/store"
	httptransport "ballotguard/internal/transport/http"
	"ballotguard/internal/vote"
	votestore "ballotguard/internal/vote/store"
	"ballotguard/migrations"
	"ballotguard/pkg/platform/circuit"
)

// infrastructure holds the external clients. Each is nil when unconfigured.
type infrastructure struct {
	db       *sql.DB
	readPool *pgxpool.Pool
	redis    *platformredis.Client
	kafka    *kgo.Client
}

func openInfrastructure(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	fail := func(err error) (*infrastructure, error) {
		infra.Close()
		return nil, err
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		infra.db = db
		if err := migrations.Apply(ctx, db); err != nil {
			return fail(fmt.Errorf("apply migrations: %w", err))
		}
		pool, err := postgres.OpenReadPool(ctx, cfg.ReadDatabase)
		if err != nil {
			return fail(fmt.Errorf("open read pool: %w", err))
		}
		infra.readPool = pool
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set; using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fail(fmt.Errorf("open redis: %w", err))
	}
	infra.redis = rc

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return fail(err)
	}
	infra.kafka = kc
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka); err != nil {
			return fail(err)
		}
	}
	return infra, nil
}

func (i *infrastructure) mode() string {
	if i.db != nil {
		return "postgres"
	}
	return "memory"
}

func (i *infrastructure) readiness() map[string]httptransport.ReadinessCheck {
	checks := map[string]httptransport.ReadinessCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
		checks["postgres_read"] = i.readPool.Ping
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.kafka != nil {
		checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, i.kafka) }
	}
	return checks
}

func (i *infrastructure) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.readPool != nil {
		i.readPool.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// app is the assembled module graph.
type app struct {
	httpMetrics     *platformmetrics.Metrics
	sessions        *identity.MiddlewareAdapter
	security        *security.Service
	fingerprinter   *device.Service
	ballotHandler   *ballothandler.Handler
	securityHandler *securityhandler.Handler
	reconciler      *reconcile.Reconciler
	dispatcher      *reconcile.Dispatcher
	relay           *outbox.Relay
	closeLedger     func()
}

func buildApp(ctx context.Context, cfg *config.Config, infra *infrastructure, log *slog.Logger) (*app, error) {
	a := &app{
		httpMetrics: platformmetrics.New(),
		closeLedger: func() {},
	}

	// Security ledger: append-only writes, projection reads, outbox relay.
	secMetrics := securitymetrics.New()
	var (
		secStore  security.Store
		secReader security.Reader
	)
	if infra.db != nil {
		secStore = securitystore.NewPostgres(infra.db)
		secReader = securitystore.NewProjection(infra.readPool)
		var publisher outbox.Publisher = outbox.NewLogPublisher(log.InfoContext)
		if infra.kafka != nil {
			publisher = outbox.NewKafkaPublisher(infra.kafka, cfg.Kafka.Topic)
		}
		a.relay = outbox.NewRelay(securitystore.NewOutbox(infra.db), publisher,
			cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatchSize,
			outbox.WithLogger(log),
			outbox.WithMetrics(secMetrics),
		)
	} else {
		mem := securitystore.NewInMemory()
		secStore, secReader = mem, mem
	}
	a.security = security.NewService(secStore, secReader,
		security.WithLogger(log),
		security.WithMetrics(secMetrics),
	)
	a.securityHandler = securityhandler.New(a.security, log)

	// Risk scoring.
	var hist history.Store = history.NewInMemory()
	if infra.redis != nil {
		hist = history.NewRedis(infra.redis.Client)
	}
	a.fingerprinter = device.NewService(true)
	scorer := risk.NewScorer(
		[]risk.Collector{
			collectors.NewBiometricAnalyzer(),
			collectors.NewBehavioralAnalyzer(hist, cfg.Risk.NetworkWindow),
			collectors.NewDeviceAnalyzer(a.fingerprinter, hist, cfg.Risk.DeviceWindow),
			collectors.NewNetworkAnalyzer(hist, cfg.Risk.NetworkWindow),
		},
		risk.Weights{
			risk.CollectorBiometric:  cfg.Risk.Weights.Biometric,
			risk.CollectorBehavioral: cfg.Risk.Weights.Behavioral,
			risk.CollectorDevice:     cfg.Risk.Weights.Device,
			risk.CollectorNetwork:    cfg.Risk.Weights.Network,
		},
		risk.Thresholds{
			Block:        cfg.Risk.BlockThreshold,
			Challenge:    cfg.Risk.ChallengeThreshold,
			ForcedBlock:  cfg.Risk.ForcedBlockSeverity,
			FailureLevel: cfg.Risk.FailureSeverity,
		},
		a.security,
		risk.WithLogger(log),
		risk.WithMetrics(riskmetrics.New()),
		risk.WithCollectorTimeout(cfg.Risk.CollectorTimeout),
	)

	// Eligibility and votes.
	var (
		voters voterStore
		votes  vote.Store
	)
	if infra.db != nil {
		voters = eligibilitystore.NewPostgres(infra.db)
		votes = votestore.NewPostgres(infra.db)
	} else {
		voters = eligibilitystore.NewInMemory()
		votes = votestore.NewInMemory()
	}
	guard := eligibility.NewGuard(voters, a.security, eligibility.WithLogger(log))

	a.sessions = identity.NewMiddlewareAdapter(identity.NewVerifier(
		cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.Audience,
		identity.WithVoterDirectory(voters),
		identity.WithLogger(log),
	))

	// Ledger anchoring.
	inner, closeLedger, err := openAnchor(ctx, cfg.Ledger, log)
	if err != nil {
		return nil, err
	}
	a.closeLedger = closeLedger
	ledgerMetrics := ledgermetrics.New()
	anchor := ledger.NewRetryingAnchor(inner,
		ledger.RetryPolicy{
			Timeout:        cfg.Ledger.Timeout,
			MaxAttempts:    cfg.Ledger.MaxAttempts,
			InitialBackoff: cfg.Ledger.InitialBackoff,
			MaxBackoff:     cfg.Ledger.MaxBackoff,
		},
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgerMetrics),
		ledger.WithBreaker(circuit.New("ledger-anchor",
			circuit.WithFailureThreshold(cfg.Ledger.BreakerThreshold),
			circuit.WithCooldown(cfg.Ledger.BreakerCooldown),
		)),
	)
	committer := vote.NewCommitter(votes, anchor, vote.WithLogger(log))
	a.reconciler = reconcile.NewReconciler(committer,
		cfg.Ledger.ReconcileInterval, cfg.Ledger.ReconcileBatch,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(ledgerMetrics),
		reconcile.WithMinAge(cfg.Ledger.Timeout),
	)

	// Cast pipeline.
	pipelineOpts := []ballot.Option{
		ballot.WithLogger(log),
		ballot.WithMetrics(ballotmetrics.New()),
		ballot.WithBiometricRequired(cfg.Session.RequireBiometric),
		ballot.WithStepUpWindow(cfg.Risk.StepUpWindow),
	}
	if infra.db != nil {
		pipelineOpts = append(pipelineOpts, ballot.WithTxRunner(newBallotPostgresTx(infra.db)))
	}
	if cfg.Ledger.Mode == config.LedgerModeAsync {
		a.dispatcher = reconcile.NewDispatcher(committer,
			cfg.Ledger.AsyncWorkers, cfg.Ledger.AsyncQueueSize,
			reconcile.WithLogger(log),
			reconcile.WithMetrics(ledgerMetrics),
		)
		pipelineOpts = append(pipelineOpts, ballot.WithAsyncAnchoring(a.dispatcher))
	}
	pipeline := ballot.NewPipeline(scorer, guard, committer, a.security, pipelineOpts...)
	a.ballotHandler = ballothandler.New(pipeline, committer, log)

	return a, nil
}

// voterStore is what both the claim guard and the session verifier need
// from the voter table.
type voterStore interface {
	eligibility.Store
	identity.VoterDirectory
}

func openAnchor(ctx context.Context, cfg config.LedgerConfig, log *slog.Logger) (ledger.Anchor, func(), error) {
	switch cfg.Backend {
	case config.LedgerBackendEthereum:
		anchor, client, err := ledger.DialEthereum(ctx, cfg.RPCURL, cfg.PrivateKeyHex,
			ledger.WithReceiptPoll(cfg.ReceiptPoll),
			ledger.WithEthereumLogger(log),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("dial ethereum: %w", err)
		}
		log.InfoContext(ctx, "anchoring to ethereum", "address", anchor.Address().Hex())
		return anchor, client.Close, nil
	default:
		log.WarnContext(ctx, "anchoring to the in-process hash chain; not for production")
		return ledger.NewLocalChain(), func() {}, nil
	}
}
