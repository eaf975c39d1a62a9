// Package server provides the importable lcpd HTTP server.
// E2E tests start and stop it programmatically without running main().
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/pkg/lcp"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":3000" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout, 0 lets an audit run as long as it needs
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port. No write timeout is set, so
// /lcp answers however long the audit takes.
func DefaultConfig() Config {
	return Config{
		Addr:        ":0",
		ReadTimeout: 30 * time.Second,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStats serves stats on GET /stats.
func WithStats(stats *lcp.Stats) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// WithMetrics serves metrics on GET /metrics.
func WithMetrics(metrics *lcp.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// Server is the lcpd HTTP server. It can be started again after Shutdown.
type Server struct {
	cfg        Config
	handler    http.Handler
	httpServer *http.Server
	logger     *zap.Logger
	stats      *lcp.Stats
	metrics    *lcp.Metrics
	addr       string
	mu         sync.Mutex
}

// NewServer creates a new server measuring with svc.
// The server is not started until Start() is called.
func NewServer(cfg Config, svc Measurer, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("measurer must not be nil")
	}

	s := &Server{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	// Serve usage page at root
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(HTMLPage))
	})

	mux.Handle("GET /lcp", HandleLCP(svc, s.logger))
	mux.Handle("GET /healthz", HandleHealth(svc))
	mux.Handle("GET /stats", HandleStats(s.stats))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handler = accessLog(mux, s.logger)
	return s, nil
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine. Starting a
// running server returns its current address.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	// http.Server cannot serve again once shut down, so every start gets a
	// fresh one.
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.httpServer = srv
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("server listening", zap.String("addr", s.addr))
	return s.addr, nil
}

// Shutdown gracefully shuts down the server, waiting for a running audit to
// finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}

	srv := s.httpServer
	s.httpServer = nil
	s.addr = ""
	return srv.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
