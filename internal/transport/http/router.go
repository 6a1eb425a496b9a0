// Package httptransport assembles the HTTP surface: middleware chain, module
// routes and operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ballotguard/internal/platform/telemetry"
	"ballotguard/pkg/platform/httputil"
	adminmw "ballotguard/pkg/platform/middleware/admin"
	authmw "ballotguard/pkg/platform/middleware/auth"
	devicemw "ballotguard/pkg/platform/middleware/device"
	metadata "ballotguard/pkg/platform/middleware/metadata"
	request "ballotguard/pkg/platform/middleware/request"
	"ballotguard/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that need no session.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// BallotRoutes mounts the session-protected and the open vote routes.
type BallotRoutes interface {
	Registrar
	PublicRegistrar
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps is everything the router wires together.
type Deps struct {
	Logger         *slog.Logger
	Latency        request.LatencyObserver
	Sessions       authmw.SessionVerifier
	Rejections     authmw.RejectionRecorder
	Fingerprinter  devicemw.Fingerprinter
	Ballot         BallotRoutes
	Security       Registrar
	AdminToken     string
	TrustProxy     bool
	RequestTimeout time.Duration
	ServiceName    string
	Readiness      map[string]ReadinessCheck
}

// NewRouter builds the HTTP handler. Voter routes require a session, admin
// routes require the admin token, and /healthz, /readyz, /metrics and receipt
// verification are open.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(d.TrustProxy))
	r.Use(devicemw.Middleware(d.Fingerprinter))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(d.Readiness, d.Logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.ServiceName != "" {
			r.Use(telemetry.HTTPMiddleware(d.ServiceName))
		}
		r.Use(request.Timeout(d.RequestTimeout))
		r.Use(request.ContentTypeJSON)

		if d.Ballot != nil {
			r.Group(func(r chi.Router) {
				r.Use(request.Latency(d.Latency, "/votes/verify"))
				d.Ballot.RegisterPublic(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(request.Latency(d.Latency, "/votes"))
				r.Use(authmw.RequireSession(d.Sessions, d.Rejections, d.Logger))
				d.Ballot.Register(r)
			})
		}

		if d.Security != nil {
			r.Group(func(r chi.Router) {
				r.Use(request.Latency(d.Latency, "/admin/security-events"))
				r.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
				d.Security.Register(r)
			})
		}
	})
	return r
}

func readinessHandler(checks map[string]ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"checks": results})
	}
}
