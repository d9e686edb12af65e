// Package api exposes the supervisor's lifecycle, status, and log
// operations over a local HTTP control API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devfleet/devfleet/internal/metrics"
)

// ServerConfig holds configuration for the control API server
type ServerConfig struct {
	Host string
	Port int
}

// Server is the HTTP control API server
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	httpServer *http.Server
	handlers   *Handlers
	mu         sync.Mutex
}

// NewServer creates a new control API server
func NewServer(config ServerConfig, handlers *Handlers) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		config:   config,
		router:   r,
		handlers: handlers,
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handlers.GetStatus)

		r.Get("/services", s.handlers.ListServices)
		r.Get("/services/{name}", s.handlers.GetService)
		r.Post("/services/{name}/start", s.handlers.StartService)
		r.Post("/services/{name}/stop", s.handlers.StopService)
		r.Post("/services/{name}/restart", s.handlers.RestartService)

		r.Get("/logs", s.handlers.GetLogs)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streamed log responses have no bounded duration
		IdleTimeout:  60 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr returns the server address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Router returns the underlying router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}
