// Package server exposes a gqlhost Service over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	POST   /v1/graphql                    parse, run, discard in one request
//	POST   /v1/queries                    parse and keep a query
//	DELETE /v1/queries/{id}               release a kept query
//	POST   /v1/queries/{id}/execute       first payload of an operation
//	GET    /v1/queries/{id}/subscribe     payloads as server-sent events
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/gqlhost"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server routes HTTP requests to a Service.
type Server struct {
	router *chi.Mux
	svc    *gqlhost.Service
	logger *slog.Logger
	addr   string

	mu      sync.Mutex
	queries map[string]*gqlhost.ParsedQuery
}

// New creates a server for svc. The server does not own svc.
func New(addr string, svc *gqlhost.Service, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		svc:     svc,
		logger:  logger,
		addr:    addr,
		queries: make(map[string]*gqlhost.ParsedQuery),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metricsMiddleware)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Post("/v1/graphql", s.handleGraphQL)
	s.router.Route("/v1/queries", func(r chi.Router) {
		r.Post("/", s.handleParse)
		r.Delete("/{id}", s.handleDiscard)
		r.Post("/{id}/execute", s.handleExecute)
		r.Get("/{id}/subscribe", s.handleSubscribe)
	})
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully and releases
// every kept query.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if cerr := s.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close releases every kept query.
func (s *Server) Close() error {
	s.mu.Lock()
	queries := s.queries
	s.queries = make(map[string]*gqlhost.ParsedQuery)
	s.mu.Unlock()

	var errs []error
	for _, q := range queries {
		errs = append(errs, q.Release())
	}
	return errors.Join(errs...)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
