// Package api provides the HTTP REST API for alicorn. It exposes scan
// comparisons, comparison sessions with auto-saved notes and bookmarks,
// saved comparisons, and session notifications over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/anstrom/alicorn/internal/api/handlers"
	"github.com/anstrom/alicorn/internal/api/middleware"
	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	handlers   *apihandlers.HandlerManager
	logger     *slog.Logger
	metrics    metrics.MetricsRegistry
	prometheus *metrics.PrometheusMetrics
	startTime  time.Time
}

// New creates a new API server instance. deps.Sessions and deps.Source are
// required; prom may be nil to disable the Prometheus endpoint.
func New(cfg *config.Config, deps apihandlers.Dependencies, prom *metrics.PrometheusMetrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if deps.Sessions == nil || deps.Source == nil {
		return nil, fmt.Errorf("comparison sessions and data source are required")
	}

	if deps.Logger == nil {
		deps.Logger = logging.Default().Logger
	}
	logger := deps.Logger.With("component", "api")
	deps.Logger = logger

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}

	server := &Server{
		router:     mux.NewRouter(),
		config:     cfg,
		handlers:   apihandlers.New(deps),
		logger:     logger,
		metrics:    deps.Metrics,
		prometheus: prom,
		startTime:  time.Now(),
	}

	server.setupRoutes()
	server.setupMiddleware(&cfg.API)

	server.httpServer = &http.Server{
		Addr:           cfg.API.Address(),
		Handler:        server.handler,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		MaxHeaderBytes: cfg.API.MaxHeaderBytes,
	}

	return server, nil
}

// Start starts the API server and blocks until ctx is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	hm := s.handlers
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/liveness", hm.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/health", hm.Health).Methods(http.MethodGet)
	api.HandleFunc("/version", hm.Version).Methods(http.MethodGet)
	api.HandleFunc("/metrics", hm.Metrics).Methods(http.MethodGet)

	// Comparisons
	cmp := hm.Comparison()
	api.HandleFunc("/comparisons", cmp.Compare).Methods(http.MethodGet)

	sessions := api.PathPrefix("/comparison-sessions").Subrouter()
	sessions.HandleFunc("", cmp.CreateSession).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", cmp.GetSession).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", cmp.DeleteSession).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/data", cmp.GetSessionData).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/note", cmp.UpdateNote).Methods(http.MethodPut)
	sessions.HandleFunc("/{id}/bookmark", cmp.ToggleBookmark).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/removal/confirm", cmp.ConfirmRemoval).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/removal/cancel", cmp.CancelRemoval).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/export", cmp.Export).Methods(http.MethodGet)

	// Saved comparisons
	if saved := hm.Saved(); saved != nil {
		api.HandleFunc("/saved-comparisons", saved.ListSaved).Methods(http.MethodGet)
		api.HandleFunc("/saved-comparisons/{id}", saved.DeleteSaved).Methods(http.MethodDelete)
	}

	// Session notifications
	if ws := hm.Notifications(); ws != nil {
		api.Handle("/ws/notifications", ws).Methods(http.MethodGet)
	}

	// Prometheus exposition
	if s.prometheus != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.prometheus.GetRegistry(), promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		})).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)

	// Subrouters do not inherit these handlers from the root router.
	for _, r := range []*mux.Router{s.router, api, sessions} {
		r.NotFoundHandler = http.HandlerFunc(s.notFound)
		r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusNotFound, map[string]interface{}{
		"error":     http.StatusText(http.StatusNotFound),
		"message":   "no route for " + r.URL.Path,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusMethodNotAllowed, map[string]interface{}{
		"error":     http.StatusText(http.StatusMethodNotAllowed),
		"message":   r.Method + " is not supported on " + r.URL.Path,
		"timestamp": time.Now().UTC(),
	})
}

// setupMiddleware configures middleware for the API server. The route-aware
// middleware runs inside the router; CORS wraps the router so preflight
// requests are answered before route matching.
func (s *Server) setupMiddleware(apiConfig *config.APIConfig) {
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.Metrics(s.metrics))
	if s.prometheus != nil {
		s.router.Use(middleware.Instrument(s.prometheus))
	}

	if apiConfig.AuthEnabled {
		s.router.Use(middleware.Authentication(apiConfig.APIKeys, s.logger))
	}
	if apiConfig.RateLimitEnabled {
		s.router.Use(middleware.RateLimit(apiConfig.RateLimitRequests, apiConfig.RateLimitWindow, s.logger))
	}

	s.router.Use(middleware.ContentType())
	if apiConfig.MaxRequestSize > 0 {
		s.router.Use(middleware.MaxBodySize(apiConfig.MaxRequestSize))
	}
	if apiConfig.RequestTimeout > 0 {
		s.router.Use(middleware.RequestTimeout(apiConfig.RequestTimeout))
	}

	s.handler = s.router
	if apiConfig.EnableCORS {
		s.handler = handlers.CORS(
			handlers.AllowedOrigins(apiConfig.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key", middleware.RequestIDHeader}),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.ExposedHeaders([]string{"Content-Disposition", middleware.RequestIDHeader}),
		)(s.router)
	}
}

// index returns API information for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	v, _, _ := apihandlers.BuildInfo()
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "alicorn",
		"version": v,
		"endpoints": map[string]string{
			"liveness":            "/api/v1/liveness",
			"health":              "/api/v1/health",
			"comparisons":         "/api/v1/comparisons",
			"comparison_sessions": "/api/v1/comparison-sessions",
			"saved_comparisons":   "/api/v1/saved-comparisons",
			"notifications":       "/api/v1/ws/notifications",
		},
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// IsRunning checks if the server is accepting connections.
func (s *Server) IsRunning() bool {
	if s.httpServer == nil {
		return false
	}

	conn, err := net.DialTimeout("tcp", s.httpServer.Addr, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}
