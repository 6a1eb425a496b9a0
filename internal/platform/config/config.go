// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "ballotguard/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Ledger modes.
const (
	LedgerModeSync  = "sync"
	LedgerModeAsync = "async"
)

// Ledger backends.
const (
	LedgerBackendEthereum = "ethereum"
	LedgerBackendLocal    = "local"
)

// Config is the full process configuration.
type Config struct {
	Environment string
	LogLevel    string

	Server       Server
	Database     DatabaseConfig
	ReadDatabase DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Session      SessionConfig
	Risk         RiskConfig
	Ledger       LedgerConfig
	Telemetry    TelemetryConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	AdminToken        string
	TrustProxyHeaders bool
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

// DatabaseConfig configures a PostgreSQL connection. An empty URL selects the
// in-memory stores (local development only).
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
	RetryDelay      time.Duration
}

// RedisConfig configures the risk history store. An empty URL selects the
// in-memory history.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the security event relay. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int
	ReplicationFactor int
	RelayInterval     time.Duration
	RelayBatchSize    int
}

// SessionConfig configures voter session token verification.
type SessionConfig struct {
	SigningKey       string
	Issuer           string
	Audience         string
	RequireBiometric bool
}

// RiskWeights are the collector weights used by the aggregate score.
type RiskWeights struct {
	Biometric  float64
	Behavioral float64
	Device     float64
	Network    float64
}

// RiskConfig configures the risk scorer and its collectors.
type RiskConfig struct {
	Weights             RiskWeights
	BlockThreshold      float64
	ChallengeThreshold  float64
	ForcedBlockSeverity float64
	FailureSeverity     float64
	CollectorTimeout    time.Duration
	StepUpWindow        time.Duration
	NetworkWindow       time.Duration
	DeviceWindow        time.Duration
}

// LedgerConfig configures vote anchoring.
type LedgerConfig struct {
	Mode              string
	Backend           string
	RPCURL            string
	PrivateKeyHex     string
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ReceiptPoll       time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration
	ReconcileInterval time.Duration
	ReconcileBatch    int
	AsyncWorkers      int
	AsyncQueueSize    int
}

// TelemetryConfig configures tracing. An empty endpoint keeps spans in-process.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// FromEnv loads an optional .env file and builds a validated Config.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromLookup(os.Getenv)
}

func fromLookup(get func(string) string) (*Config, error) {
	e := &envReader{get: get}

	cfg := &Config{
		Environment: e.str("APP_ENV", "development"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		Server: Server{
			Addr:              e.str("BALLOTGUARD_ADDR", ":8080"),
			AdminToken:        e.str("ADMIN_API_TOKEN", ""),
			TrustProxyHeaders: e.boolean("TRUST_PROXY_HEADERS", false),
			RequestTimeout:    e.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:   e.duration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.integer("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectRetries:  e.integer("DATABASE_CONNECT_RETRIES", 10),
			RetryDelay:      e.duration("DATABASE_RETRY_DELAY", 2*time.Second),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 20),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:           pstrings.SplitList(e.str("KAFKA_BROKERS", "")),
			Topic:             e.str("KAFKA_SECURITY_TOPIC", "ballot.security-events"),
			ClientID:          e.str("KAFKA_CLIENT_ID", "ballotguard"),
			Partitions:        e.integer("KAFKA_TOPIC_PARTITIONS", 3),
			ReplicationFactor: e.integer("KAFKA_TOPIC_REPLICATION", 1),
			RelayInterval:     e.duration("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatchSize:    e.integer("OUTBOX_RELAY_BATCH", 100),
		},
		Session: SessionConfig{
			SigningKey:       e.str("SESSION_SIGNING_KEY", devSigningKey),
			Issuer:           e.str("SESSION_ISSUER", "ballotguard-identity"),
			Audience:         e.str("SESSION_AUDIENCE", "ballotguard"),
			RequireBiometric: e.boolean("SESSION_REQUIRE_BIOMETRIC", false),
		},
		Risk: RiskConfig{
			Weights: RiskWeights{
				Biometric:  e.float("RISK_WEIGHT_BIOMETRIC", 0.35),
				Behavioral: e.float("RISK_WEIGHT_BEHAVIORAL", 0.2),
				Device:     e.float("RISK_WEIGHT_DEVICE", 0.25),
				Network:    e.float("RISK_WEIGHT_NETWORK", 0.2),
			},
			BlockThreshold:      e.float("RISK_BLOCK_THRESHOLD", 0.6),
			ChallengeThreshold:  e.float("RISK_CHALLENGE_THRESHOLD", 0.3),
			ForcedBlockSeverity: e.float("RISK_FORCED_BLOCK_SEVERITY", 0.9),
			FailureSeverity:     e.float("RISK_COLLECTOR_FAILURE_SEVERITY", 0.2),
			CollectorTimeout:    e.duration("RISK_COLLECTOR_TIMEOUT", 500*time.Millisecond),
			StepUpWindow:        e.duration("RISK_STEP_UP_WINDOW", 5*time.Minute),
			NetworkWindow:       e.duration("RISK_NETWORK_WINDOW", time.Hour),
			DeviceWindow:        e.duration("RISK_DEVICE_WINDOW", 24*time.Hour),
		},
		Ledger: LedgerConfig{
			Mode:              strings.ToLower(e.str("LEDGER_MODE", LedgerModeSync)),
			Backend:           strings.ToLower(e.str("LEDGER_BACKEND", LedgerBackendLocal)),
			RPCURL:            e.str("LEDGER_RPC_URL", ""),
			PrivateKeyHex:     e.str("LEDGER_PRIVATE_KEY", ""),
			Timeout:           e.duration("LEDGER_TIMEOUT", 10*time.Second),
			MaxAttempts:       e.integer("LEDGER_MAX_ATTEMPTS", 3),
			InitialBackoff:    e.duration("LEDGER_INITIAL_BACKOFF", 250*time.Millisecond),
			MaxBackoff:        e.duration("LEDGER_MAX_BACKOFF", 2*time.Second),
			ReceiptPoll:       e.duration("LEDGER_RECEIPT_POLL", time.Second),
			BreakerThreshold:  e.integer("LEDGER_BREAKER_THRESHOLD", 5),
			BreakerCooldown:   e.duration("LEDGER_BREAKER_COOLDOWN", 30*time.Second),
			ReconcileInterval: e.duration("LEDGER_RECONCILE_INTERVAL", 30*time.Second),
			ReconcileBatch:    e.integer("LEDGER_RECONCILE_BATCH", 50),
			AsyncWorkers:      e.integer("LEDGER_ASYNC_WORKERS", 4),
			AsyncQueueSize:    e.integer("LEDGER_ASYNC_QUEUE", 256),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  e.str("OTEL_SERVICE_NAME", "ballotguard"),
			OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     e.boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio:  e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.ReadDatabase = cfg.Database
	if url := e.str("READ_DATABASE_URL", ""); url != "" {
		cfg.ReadDatabase.URL = url
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether development fallbacks must be refused.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate enforces ranges and cross-field rules.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	w := c.Risk.Weights
	check(w.Biometric >= 0.25 && w.Biometric <= 0.5, "RISK_WEIGHT_BIOMETRIC must be within [0.25, 0.5], got %v", w.Biometric)
	check(w.Behavioral >= 0.15 && w.Behavioral <= 0.3, "RISK_WEIGHT_BEHAVIORAL must be within [0.15, 0.3], got %v", w.Behavioral)
	check(w.Device >= 0.2 && w.Device <= 0.25, "RISK_WEIGHT_DEVICE must be within [0.2, 0.25], got %v", w.Device)
	check(w.Network >= 0.1 && w.Network <= 0.2, "RISK_WEIGHT_NETWORK must be within [0.1, 0.2], got %v", w.Network)
	check(c.Risk.ChallengeThreshold > 0 && c.Risk.ChallengeThreshold < c.Risk.BlockThreshold && c.Risk.BlockThreshold < 1,
		"risk thresholds must satisfy 0 < challenge < block < 1")
	check(c.Risk.ForcedBlockSeverity > 0 && c.Risk.ForcedBlockSeverity <= 1, "RISK_FORCED_BLOCK_SEVERITY must be within (0, 1]")
	check(c.Risk.FailureSeverity >= 0 && c.Risk.FailureSeverity < c.Risk.ForcedBlockSeverity,
		"RISK_COLLECTOR_FAILURE_SEVERITY must be below the forced block severity")
	check(c.Risk.CollectorTimeout > 0, "RISK_COLLECTOR_TIMEOUT must be positive")

	check(c.Ledger.Mode == LedgerModeSync || c.Ledger.Mode == LedgerModeAsync, "LEDGER_MODE must be sync or async, got %q", c.Ledger.Mode)
	switch c.Ledger.Backend {
	case LedgerBackendLocal:
	case LedgerBackendEthereum:
		check(c.Ledger.RPCURL != "", "LEDGER_RPC_URL is required for the ethereum backend")
		check(c.Ledger.PrivateKeyHex != "", "LEDGER_PRIVATE_KEY is required for the ethereum backend")
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be ethereum or local, got %q", c.Ledger.Backend))
	}
	check(c.Ledger.Timeout > 0, "LEDGER_TIMEOUT must be positive")
	check(c.Ledger.MaxAttempts >= 1, "LEDGER_MAX_ATTEMPTS must be at least 1")
	check(c.Ledger.AsyncWorkers >= 1 && c.Ledger.AsyncQueueSize >= 1, "ledger async workers and queue size must be positive")
	check(c.Ledger.ReconcileInterval > 0 && c.Ledger.ReconcileBatch >= 1, "ledger reconcile interval and batch must be positive")
	check(c.Kafka.RelayInterval > 0 && c.Kafka.RelayBatchSize >= 1, "outbox relay interval and batch must be positive")

	check(c.Telemetry.SampleRatio >= 0 && c.Telemetry.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be within [0, 1]")

	if c.IsProduction() {
		check(c.Session.SigningKey != devSigningKey, "SESSION_SIGNING_KEY must be set in production")
		check(c.Database.URL != "", "DATABASE_URL must be set in production")
		check(c.Ledger.Backend == LedgerBackendEthereum, "the local ledger backend is not allowed in production")
	}
	return errors.Join(errs...)
}

type envReader struct {
	get  func(string) string
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return i
}

func (e *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
