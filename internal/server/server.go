// Package server wires the chi router, middleware chain and REST handlers
// into an HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/internal/config"
	apperrors "github.com/ebu/mcma-projects-sub000/internal/errors"
	"github.com/ebu/mcma-projects-sub000/internal/server/handlers"
	"github.com/ebu/mcma-projects-sub000/internal/server/middleware"
)

// Server is the REST front end of the job processor.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	log     *zap.Logger

	httpServer *http.Server
}

// New assembles the router and middleware around the handler set.
func New(cfg config.ServerConfig, api *handlers.API, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger(log))

	r.NotFound(apperrors.NotFoundHandler())
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler())

	r.Get("/health", api.Health)
	r.Get("/health/live", api.Live)
	r.Get("/health/ready", api.Ready)
	r.Get("/version", api.VersionInfo)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", api.CreateJob)
		r.Get("/", api.ListJobs)
		r.Route("/{jobId}", func(r chi.Router) {
			r.Get("/", api.GetJob)
			r.Delete("/", api.DeleteJob)
			r.Post("/cancel", api.CancelJob)
			r.Post("/restart", api.RestartJob)
			r.Route("/executions", func(r chi.Router) {
				r.Get("/", api.ListExecutions)
				r.Get("/{executionId}", api.GetExecution)
				r.Post("/{executionId}/notifications", api.PostNotification)
			})
		})
	})

	var handler http.Handler = r
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		}).Handler(handler)
	}

	return &Server{cfg: cfg, handler: handler, log: log}
}

// Handler exposes the assembled handler, primarily for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.cfg.Port }

// Start serves until ctx is canceled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
