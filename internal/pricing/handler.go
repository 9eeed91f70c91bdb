package pricing

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wbfreight/dispatch/internal/domain"
)

type Handler struct {
	calc   *Calculator
	logger *slog.Logger
}

func NewHandler(calc *Calculator, logger *slog.Logger) *Handler {
	return &Handler{
		calc:   calc,
		logger: logger,
	}
}

type previewRequest struct {
	WarehouseID int64            `json:"warehouse_id"`
	Cargo       domain.CargoSpec `json:"cargo"`
	ServiceIDs  []int64          `json:"service_ids"`
}

type previewResponse struct {
	Breakdown
	Currency string `json:"currency"`
}

// HandlePreview prices a cargo spec without persisting anything.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Cargo.BoxCount < 0 || req.Cargo.PalletCount < 0 {
		h.writeError(w, http.StatusBadRequest, "counts must not be negative")
		return
	}

	breakdown, err := h.calc.Quote(r.Context(), req.Cargo, req.WarehouseID, req.ServiceIDs)
	if err != nil {
		h.logger.Error("failed to compute price preview", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("price preview computed", "total", breakdown.Total)
	h.writeJSON(w, http.StatusOK, previewResponse{Breakdown: breakdown, Currency: "RUB"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
