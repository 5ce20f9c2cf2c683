// Package api serves the worker's ops endpoints: liveness, readiness, module
// health, the last cycle result and the Prometheus scrape.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/registry"
)

var log = logger.Named("api")

// CycleSource reports the most recent cycle.
type CycleSource interface {
	LastResult() (contracts.CycleResult, bool)
}

// HeartbeatLister lists recent worker heartbeats.
type HeartbeatLister interface {
	Recent(ctx context.Context, limit int) ([]domain.WorkerHeartbeat, error)
}

// Server is the ops HTTP server.
type Server struct {
	workerID    string
	reg         *registry.Registry
	cycles      CycleSource
	metrics     http.Handler
	lock        ports.Lock
	heartbeats  HeartbeatLister
	db          *sql.DB
	redisClient *redis.Client
	corsOrigins []string
	startTime   time.Time

	router *chi.Mux
	server *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithLock reports whether this worker holds the lock on /status.
func WithLock(l ports.Lock) Option { return func(s *Server) { s.lock = l } }

// WithHeartbeats lists recent heartbeats on /status.
func WithHeartbeats(h HeartbeatLister) Option { return func(s *Server) { s.heartbeats = h } }

// WithDatabase adds a database ping to the health checks.
func WithDatabase(db *sql.DB) Option { return func(s *Server) { s.db = db } }

// WithRedis adds a Redis ping to the health checks.
func WithRedis(c *redis.Client) Option { return func(s *Server) { s.redisClient = c } }

// WithCORSOrigins allows browser dashboards on origins to read the endpoints.
func WithCORSOrigins(origins []string) Option { return func(s *Server) { s.corsOrigins = origins } }

// NewServer builds the ops server. metrics may be nil.
func NewServer(workerID string, reg *registry.Registry, cycles CycleSource, metrics http.Handler, opts ...Option) *Server {
	s := &Server{
		workerID:  workerID,
		reg:       reg,
		cycles:    cycles,
		metrics:   metrics,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ops server listening", "addr", addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
