package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/metrics"
)

// Dependencies are the services the handler groups are built from.
// Database, Saved and Notifications may be nil.
type Dependencies struct {
	Database      DatabasePinger
	Sessions      SessionManager
	Source        comparison.DataSource
	Saved         SavedComparisonStore
	Notifications http.Handler
	Logger        *slog.Logger
	Metrics       metrics.MetricsRegistry
}

// HandlerManager manages all API handlers and their dependencies.
type HandlerManager struct {
	logger *slog.Logger

	health        *HealthHandler
	comparison    *ComparisonHandler
	saved         *SavedHandler
	notifications http.Handler
}

// New creates a new handler manager with all handler groups initialized.
func New(deps Dependencies) *HandlerManager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hm := &HandlerManager{
		logger:        logger,
		notifications: deps.Notifications,
	}

	var sessions SessionCounter
	if deps.Sessions != nil {
		sessions = deps.Sessions
	}

	hm.health = NewHealthHandler(deps.Database, sessions, logger, deps.Metrics)
	hm.comparison = NewComparisonHandler(deps.Sessions, deps.Source, logger, deps.Metrics)
	if deps.Saved != nil {
		hm.saved = NewSavedHandler(deps.Saved, logger, deps.Metrics)
	}

	return hm
}

// Health handles GET /health.
func (hm *HandlerManager) Health(w http.ResponseWriter, r *http.Request) {
	hm.health.Health(w, r)
}

// Liveness handles GET /liveness.
func (hm *HandlerManager) Liveness(w http.ResponseWriter, r *http.Request) {
	hm.health.Liveness(w, r)
}

// Version handles GET /version.
func (hm *HandlerManager) Version(w http.ResponseWriter, r *http.Request) {
	hm.health.Version(w, r)
}

// Metrics handles GET /metrics.
func (hm *HandlerManager) Metrics(w http.ResponseWriter, r *http.Request) {
	hm.health.Metrics(w, r)
}

// Comparison returns the comparison handler group.
func (hm *HandlerManager) Comparison() *ComparisonHandler {
	return hm.comparison
}

// Saved returns the saved comparison handler group, or nil when no store
// is configured.
func (hm *HandlerManager) Saved() *SavedHandler {
	return hm.saved
}

// Notifications returns the WebSocket notification handler, or nil.
func (hm *HandlerManager) Notifications() http.Handler {
	return hm.notifications
}
