package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server for the scene-generation API. Its write
// timeout bounds only the request/response exchange; scene dispatch runs in
// the background on the orchestrator's own context, so slow provider calls
// never hold an HTTP connection open.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server from the configured port and timeouts.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests. In-flight scene tasks are not drained
// here; they end when the orchestrator's base context is cancelled.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
