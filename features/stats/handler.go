package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"kontext/apps/processor/internal/middleware"
)

type LedgerCounter interface {
	CountByCode(ctx context.Context) (map[string]int, error)
}

type Handler struct {
	ledger LedgerCounter
}

func NewHandler(l LedgerCounter) *Handler {
	return &Handler{ledger: l}
}

type StatsResponse struct {
	FailedJobs int            `json:"failed_jobs"`
	ByCode     map[string]int `json:"by_code"`
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stats", h.GetStats)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	counts, err := h.ledger.CountByCode(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{ByCode: counts}
	for _, n := range counts {
		resp.FailedJobs += n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
