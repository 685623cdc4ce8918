package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/metrics"
)

// SavedComparisonStore lists and deletes bookmarked comparisons.
type SavedComparisonStore interface {
	List(ctx context.Context, offset, limit int) ([]*db.SavedComparison, int64, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

var _ SavedComparisonStore = (*db.SavedComparisonRepository)(nil)

// SavedHandler handles saved comparison endpoints.
type SavedHandler struct {
	store   SavedComparisonStore
	logger  *slog.Logger
	metrics metrics.MetricsRegistry
}

// NewSavedHandler creates a new saved comparison handler.
func NewSavedHandler(store SavedComparisonStore, logger *slog.Logger, metricsRegistry metrics.MetricsRegistry) *SavedHandler {
	return &SavedHandler{
		store:   store,
		logger:  logger.With("handler", "saved_comparisons"),
		metrics: metricsRegistry,
	}
}

// SavedComparisonResponse represents a saved comparison in API responses.
type SavedComparisonResponse struct {
	ID        uuid.UUID `json:"id"`
	ScanIDs   []int64   `json:"scan_ids"`
	Note      string    `json:"note"`
	TargetStr *string   `json:"target_str,omitempty"`
	ModeStr   *string   `json:"mode_str,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Link      string    `json:"link"`
}

// ListSaved handles GET /saved-comparisons.
func (h *SavedHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	op := &ListOperation[*db.SavedComparison]{
		EntityType: "saved comparisons",
		MetricName: "saved_comparisons_listed_total",
		Logger:     h.logger,
		Metrics:    h.metrics,
		ListFromDB: h.store.List,
		ToResponse: func(s *db.SavedComparison) interface{} {
			return savedToResponse(s)
		},
	}
	op.Execute(w, r)
}

// DeleteSaved handles DELETE /saved-comparisons/{id}.
func (h *SavedHandler) DeleteSaved(w http.ResponseWriter, r *http.Request) {
	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	op := &CRUDOperation{
		EntityType: "saved comparison",
		Logger:     h.logger,
		Metrics:    h.metrics,
	}
	op.ExecuteDelete(w, r, id, h.store.Remove, "saved_comparisons_deleted_total")
}

func savedToResponse(s *db.SavedComparison) SavedComparisonResponse {
	ids := []int64(s.ScanIDs)
	if ids == nil {
		ids = []int64{}
	}
	return SavedComparisonResponse{
		ID:        s.ID,
		ScanIDs:   ids,
		Note:      s.Note,
		TargetStr: s.TargetStr,
		ModeStr:   s.ModeStr,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Link:      comparisonLink(ids),
	}
}

// comparisonLink is the address a saved comparison is reopened at.
func comparisonLink(ids []int64) string {
	return "/api/v1/comparisons?ids=" + comparison.JoinScanIDs(ids, ",")
}
