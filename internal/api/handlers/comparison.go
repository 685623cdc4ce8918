package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/metrics"
)

// SessionManager opens and tracks comparison sessions.
type SessionManager interface {
	Open(ctx context.Context, raw string) (*comparison.Controller, error)
	Get(id uuid.UUID) (*comparison.Controller, error)
	Close(id uuid.UUID) error
	Count() int
}

var _ SessionManager = (*comparison.Manager)(nil)

// ComparisonHandler handles comparison and comparison-session endpoints.
type ComparisonHandler struct {
	sessions SessionManager
	source   comparison.DataSource
	logger   *slog.Logger
	metrics  metrics.MetricsRegistry
}

// NewComparisonHandler creates a new comparison handler.
func NewComparisonHandler(
	sessions SessionManager,
	source comparison.DataSource,
	logger *slog.Logger,
	metricsRegistry metrics.MetricsRegistry,
) *ComparisonHandler {
	return &ComparisonHandler{
		sessions: sessions,
		source:   source,
		logger:   logger.With("handler", "comparison"),
		metrics:  metricsRegistry,
	}
}

// ComparisonResponse is returned by GET /comparisons.
type ComparisonResponse struct {
	ScanIDs        []int64          `json:"scan_ids"`
	HasEnoughScans bool             `json:"has_enough_scans"`
	Data           *comparison.Data `json:"data,omitempty"`
}

// CreateSessionRequest opens a session for a comma separated list of scan ids.
type CreateSessionRequest struct {
	IDs string `json:"ids" validate:"required,max=4096"`
}

// UpdateNoteRequest replaces the session note. An empty string is allowed.
type UpdateNoteRequest struct {
	Note *string `json:"note" validate:"required,max=65536"`
}

// SessionDataResponse pairs a session state with its loaded data.
type SessionDataResponse struct {
	State comparison.State `json:"state"`
	Data  *comparison.Data `json:"data"`
}

// Compare handles GET /comparisons?ids=... It validates the ids and, when at
// least two remain, returns the aligned comparison data.
func (h *ComparisonHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ids := comparison.ParseScanIDs(r.URL.Query().Get("ids"))
	response := ComparisonResponse{
		ScanIDs:        ids,
		HasEnoughScans: comparison.HasEnoughScans(ids),
	}

	if response.HasEnoughScans {
		data, err := h.source.Fetch(r.Context(), ids)
		if err != nil {
			handleError(w, r, err, "fetch comparison", h.logger)
			return
		}
		response.Data = data
	}

	writeJSON(w, r, http.StatusOK, response)
	recordCRUDMetric(h.metrics, "comparisons_viewed_total", metrics.Labels{
		"has_enough_scans": strconv.FormatBool(response.HasEnoughScans),
	})
}

// CreateSession handles POST /comparison-sessions.
func (h *ComparisonHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := parseJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ctrl, err := h.sessions.Open(r.Context(), req.IDs)
	if err != nil {
		handleError(w, r, err, "open comparison session", h.logger)
		return
	}

	h.logger.Info("Comparison session opened",
		"request_id", getRequestIDFromContext(r.Context()),
		"session_id", ctrl.ID(),
		"scan_ids", ctrl.ScanIDs())

	w.Header().Set("Location", "/api/v1/comparison-sessions/"+ctrl.ID().String())
	writeJSON(w, r, http.StatusCreated, ctrl.State())
	recordCRUDMetric(h.metrics, "comparison_sessions_created_total", nil)
}

// GetSession handles GET /comparison-sessions/{id}.
func (h *ComparisonHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, ctrl.State())
}

// GetSessionData handles GET /comparison-sessions/{id}/data.
func (h *ComparisonHandler) GetSessionData(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	data := ctrl.Data()
	if data == nil {
		if err := ctrl.Load(r.Context()); err != nil {
			handleError(w, r, err, "load comparison data", h.logger)
			return
		}
		data = ctrl.Data()
	}

	writeJSON(w, r, http.StatusOK, SessionDataResponse{State: ctrl.State(), Data: data})
}

// UpdateNote handles PUT /comparison-sessions/{id}/note.
func (h *ComparisonHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if err := parseJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := ctrl.OnNoteChange(*req.Note); err != nil {
		handleError(w, r, err, "update note", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, ctrl.State())
}

// ToggleBookmark handles POST /comparison-sessions/{id}/bookmark.
func (h *ComparisonHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := ctrl.ToggleBookmark(r.Context()); err != nil {
		handleError(w, r, err, "toggle bookmark", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, ctrl.State())
}

// ConfirmRemoval handles POST /comparison-sessions/{id}/removal/confirm.
func (h *ComparisonHandler) ConfirmRemoval(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := ctrl.ConfirmRemoval(r.Context()); err != nil {
		handleError(w, r, err, "remove bookmark", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, ctrl.State())
}

// CancelRemoval handles POST /comparison-sessions/{id}/removal/cancel.
func (h *ComparisonHandler) CancelRemoval(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := ctrl.CancelRemoval(); err != nil {
		handleError(w, r, err, "cancel removal", h.logger)
		return
	}

	writeJSON(w, r, http.StatusOK, ctrl.State())
}

// Export handles GET /comparison-sessions/{id}/export?format=csv|json|markdown.
// The file is returned as an attachment; format defaults to csv.
func (h *ComparisonHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(comparison.FormatCSV)
	}

	file, err := ctrl.Export(format)
	if err != nil {
		handleError(w, r, err, "export comparison", h.logger)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		h.logger.Debug("Failed to write export", "error", err)
	}
}

// DeleteSession handles DELETE /comparison-sessions/{id}. A pending
// debounced save is discarded.
func (h *ComparisonHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := h.sessions.Close(id); err != nil {
		handleError(w, r, err, "close comparison session", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} path parameter to an open session, writing the
// error response when it cannot.
func (h *ComparisonHandler) session(w http.ResponseWriter, r *http.Request) (*comparison.Controller, bool) {
	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return nil, false
	}

	ctrl, err := h.sessions.Get(id)
	if err != nil {
		handleError(w, r, err, "get comparison session", h.logger)
		return nil, false
	}
	return ctrl, true
}
