// Package server exposes the adapter over HTTP.
//
// Routes:
//
//	POST /v1/query    execute a named query
//	GET  /v1/queries  list the catalog
//	GET  /v1/status   breaker, health, pool and cache diagnostics
//	GET  /healthz     200 while at least one backend can be attempted
//	GET  /metrics     Prometheus exposition
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ejmockler/indra-cogex-mcp/internal/adapter"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/config"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
)

// maxBodyBytes bounds a /v1/query request body.
const maxBodyBytes = 1 << 20

// ErrAlreadyRunning is returned by Serve when the server is already serving.
var ErrAlreadyRunning = errors.New("server already running")

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *observability.TracedLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes gatherer on /metrics. Without it /metrics is not routed.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithCatalog serves the catalog on /v1/queries.
func WithCatalog(cat catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = cat
	}
}

// Server is the HTTP front end for a Querier.
type Server struct {
	cfg      config.ServerConfig
	querier  adapter.Querier
	catalog  catalog.Catalog
	gatherer prometheus.Gatherer
	logger   *observability.TracedLogger

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a server. Nothing listens until Serve or ListenAndServe.
func New(cfg config.ServerConfig, querier adapter.Querier, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		querier: querier,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.catalog != nil {
		mux.HandleFunc("GET /v1/queries", s.handleQueries)
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	return s.withRequestContext(mux)
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. In-flight requests get
// ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyRunning
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.httpServer = srv
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info(ctx, "Server shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, "Graceful shutdown failed", "error", err)
		return err
	}
	<-errCh
	return nil
}
