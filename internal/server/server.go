// Package server is the player gateway: a small HTTP server exposing health
// probes, Prometheus metrics, and a WebSocket endpoint through which a
// renderer drives playback and receives state and highlight events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sversen/novella/internal/health"
	"github.com/sversen/novella/internal/observe"
	"github.com/sversen/novella/internal/playback"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// Hooks carries the per-session callbacks the gateway installs on a playback
// controller so its events can be forwarded over the session socket.
type Hooks struct {
	OnState     func(playback.Snapshot)
	OnHighlight func(lineIndex, wordIndex int)
}

// Config wires a [Server]'s collaborators.
type Config struct {
	// ListenAddr is the address passed to the HTTP listener, e.g. ":8080".
	ListenAddr string

	// Health serves /healthz and /readyz. Required.
	Health *health.Handler

	// NewController builds a fresh playback controller for one session
	// socket, with the given hooks installed. Required.
	NewController func(Hooks) *playback.Controller

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the player gateway HTTP server.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New assembles the gateway routes. The whole mux runs behind the tracing
// and request-duration middleware.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /session", s.handleSession)

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the fully assembled gateway handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("gateway listening", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
