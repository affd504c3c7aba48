// Package http serves the financial records API over a record store.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finrecords/internal/backend"
	"finrecords/internal/cache"
	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/middleware/ratelimit"
	"finrecords/internal/middleware/security"
	"finrecords/internal/middleware/trace"
)

const maxBodyBytes = 1 << 20

type Server struct {
	http.Server
	store     backend.Store
	publisher backend.Publisher
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	lists    *cache.Lists[[]core.FinancialRecord]
	caches   *cache.Manager
	started  time.Time
	counters counters

	shutdownOnce sync.Once
}

type counters struct {
	created         int64
	updated         int64
	deleted         int64
	publishFailures int64
}

// Option customizes a Server.
type Option func(*Server)

// WithPublisher announces every confirmed mutation through p.
func WithPublisher(p backend.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithRateLimit overrides the limit applied to mutating requests.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		s.limiter.Stop()
		s.limiter = ratelimit.NewLimiter(cfg)
	}
}

// WithListCache caches each user's record list for ttl. Any mutation of a
// user's records drops that user's entry.
func WithListCache(size int, ttl time.Duration) Option {
	return func(s *Server) {
		if size <= 0 || ttl <= 0 {
			s.lists = nil
			return
		}
		s.lists = cache.NewLists[[]core.FinancialRecord](size, ttl)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store backend.Store, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		store:   store,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.caches = cache.NewManager(s.logger)
	if s.lists != nil {
		s.caches.Register(s.lists)
		s.caches.StartCleanup(time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /financial-records/getAllByUserID/{userId}", s.handleList)
	mux.HandleFunc("POST /financial-records", s.handleCreate)
	mux.HandleFunc("PUT /financial-records/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /financial-records/{id}", s.handleDelete)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	clients := security.NewClientResolver()
	s.tracer = trace.NewMiddleware(logger, clients.ClientIP)

	var h http.Handler = mux
	h = s.limiter.Middleware(clients.ClientIP, http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = security.Headers(h)
	h = log.Middleware(s.logger, func(r *http.Request) string { return trace.RequestID(r.Context()) })(h)
	h = s.tracer.Handler(h)
	s.Handler = h

	return s
}

// Shutdown stops the limiter and the cache cleanup, then gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) count(c *int64) {
	atomic.AddInt64(c, 1)
}
