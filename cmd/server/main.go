package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ballotguard/internal/platform/config"
	"ballotguard/internal/platform/httpserver"
	"ballotguard/internal/platform/logger"
	"ballotguard/internal/platform/telemetry"
	httptransport "ballotguard/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("ballotguard stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()

	infra, err := openInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := buildApp(ctx, cfg, infra, log)
	if err != nil {
		return err
	}
	defer app.closeLedger()

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Latency:        app.httpMetrics,
		Sessions:       app.sessions,
		Rejections:     app.security,
		Fingerprinter:  app.fingerprinter,
		Ballot:         app.ballotHandler,
		Security:       app.securityHandler,
		AdminToken:     cfg.Server.AdminToken,
		TrustProxy:     cfg.Server.TrustProxyHeaders,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Telemetry.ServiceName,
		Readiness:      infra.readiness(),
	})
	srv := httpserver.New(cfg.Server, router)

	// The dispatcher outlives the signal context so queued anchors drain on shutdown.
	if app.dispatcher != nil {
		app.dispatcher.Start(context.WithoutCancel(ctx))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting ballotguard",
			"addr", cfg.Server.Addr,
			"env", cfg.Environment,
			"storage", infra.mode(),
			"ledger_backend", cfg.Ledger.Backend,
			"ledger_mode", cfg.Ledger.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCancel(app.reconciler.Run(gctx))
	})
	if app.relay != nil {
		g.Go(func() error {
			return ignoreCancel(app.relay.Run(gctx))
		})
	}

	err = g.Wait()
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	log.Info("ballotguard stopped")
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
