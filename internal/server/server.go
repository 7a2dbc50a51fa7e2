// Package server wires the chi router, middleware stack, and lifecycle for
// the schemafleet HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/handler"
	"github.com/schemafleet/schemafleet/internal/openapi"
	"github.com/schemafleet/schemafleet/internal/registry"
	"github.com/schemafleet/schemafleet/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// ExecutePerMinute rate-limits the fan-out and detection endpoints per
	// client IP. DDL fan-out is expensive; listing schemas is not.
	ExecutePerMinute int
	// Version is reported in the OpenAPI document.
	Version string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		ShutdownTimeout:  30 * time.Second,
		CORSOrigins:      []string{"*"},
		ExecutePerMinute: 30,
		Version:          "dev",
	}
}

// Handlers bundles the API handlers the server routes to.
type Handlers struct {
	Schema  *handler.SchemaHandler
	Execute *handler.ExecuteHandler
	Detect  *handler.DetectHandler
	History *handler.HistoryHandler
}

// Server is the top-level HTTP server. It owns the chi router and checks the
// catalog store and baseline connections for readiness.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *catalog.Store
	registry   *registry.Registry
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, store *catalog.Store, reg *registry.Registry, h Handlers, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: reg,
		logger:   logger,
	}
	s.setupRouter(h)
	return s
}

func (s *Server) setupRouter(h Handlers) {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI document ---
	r.Get("/openapi.json", s.handleOpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/schemas", h.Schema.ListActive)
		r.Post("/schemas", h.Schema.Create)
		r.Get("/schemas/history", h.Schema.VersionHistory)
		r.Post("/schemas/{schemaID}/upgrade", h.Schema.Upgrade)

		r.Get("/history", h.History.Query)

		// Fan-out and detection drive DDL against every tenant; keep the
		// blast radius of a misbehaving client bounded.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.ExecutePerMinute))
			r.Post("/execute", h.Execute.Execute)
			r.Post("/execute-all", h.Execute.ExecuteAll)
			r.Post("/schema-detection/all", h.Detect.DetectAll)
			r.Post("/schema-detection/detect-and-save", h.Detect.DetectAndSave)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the catalog store and
// every configured baseline connection are reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["catalog"] = "error: " + err.Error()
		status = "degraded"
	} else {
		checks["catalog"] = "ok"
	}

	for _, role := range s.registry.BaselineRoles() {
		name := "baseline/" + string(role)
		db, err := s.registry.Baseline(role)
		if err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		if err := db.PingContext(r.Context()); err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	httpStatus := http.StatusOK
	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// handleOpenAPI serves the generated API document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	base := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
	doc := openapi.GenerateSpec(base, s.cfg.Version)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the tenant connection pools.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.registry.Close()
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
