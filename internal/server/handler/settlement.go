package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/outcomefi/clob/internal/domain"
	"github.com/outcomefi/clob/internal/settle"
)

// SettlementHandler exposes the settler's operational state.
type SettlementHandler struct {
	settler *settle.Settler
	batches domain.BatchStore // optional, for historical queries
	logger  *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settler *settle.Settler, batches domain.BatchStore, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settler: settler,
		batches: batches,
		logger:  logHandler(logger, "settlement"),
	}
}

// GetStats returns the settler's cumulative statistics snapshot.
// GET /api/settlement/stats
func (h *SettlementHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.settler == nil {
		writeError(w, http.StatusNotImplemented, "settler not running on this node")
		return
	}
	writeJSON(w, http.StatusOK, h.settler.Stats())
}

// validBatchStatuses guards the status query parameter.
var validBatchStatuses = map[string]domain.BatchStatus{
	"pending":    domain.BatchStatusPending,
	"submitting": domain.BatchStatusSubmitting,
	"submitted":  domain.BatchStatusSubmitted,
	"retrying":   domain.BatchStatusRetrying,
	"confirmed":  domain.BatchStatusConfirmed,
	"failed":     domain.BatchStatusFailed,
}

// ListBatches returns batches in a given status, oldest first.
// GET /api/settlement/batches?status=submitted
func (h *SettlementHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	if h.batches == nil {
		writeError(w, http.StatusNotImplemented, "batch store not configured")
		return
	}

	status, ok := validBatchStatuses[r.URL.Query().Get("status")]
	if !ok {
		writeError(w, http.StatusBadRequest, "status query parameter must be one of: pending, submitting, submitted, retrying, confirmed, failed")
		return
	}

	batches, err := h.batches.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list batches failed",
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	if batches == nil {
		batches = []domain.SettlementBatch{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// GetBatch returns one batch by id.
// GET /api/settlement/batches/{id}
func (h *SettlementHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	if h.batches == nil {
		writeError(w, http.StatusNotImplemented, "batch store not configured")
		return
	}

	id := pathParam(r, "id")
	batch, err := h.batches.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get batch failed",
			slog.String("batch_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}

	writeJSON(w, http.StatusOK, batch)
}
