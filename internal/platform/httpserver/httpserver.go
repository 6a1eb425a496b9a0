// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"

	"ballotguard/internal/platform/config"
)

// New builds the server. The write timeout leaves headroom over the request
// timeout so a handler that finishes at its deadline can still respond.
func New(cfg config.Server, handler http.Handler) *http.Server {
	writeTimeout := 60 * time.Second
	if cfg.RequestTimeout > 0 && cfg.RequestTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.RequestTimeout + 5*time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}
