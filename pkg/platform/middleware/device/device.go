// Package device attaches a server-side device fingerprint to each request.
package device

import (
	"net/http"

	"ballotguard/pkg/requestcontext"
)

// Fingerprinter derives a stable fingerprint from a User-Agent string.
type Fingerprinter interface {
	ComputeFingerprint(userAgent string) string
}

// Middleware computes the fingerprint once per request. It must run after the
// metadata middleware so the User-Agent is in context.
func Middleware(fp Fingerprinter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if fp != nil {
				if fingerprint := fp.ComputeFingerprint(requestcontext.UserAgent(ctx)); fingerprint != "" {
					ctx = requestcontext.WithDeviceFingerprint(ctx, fingerprint)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
