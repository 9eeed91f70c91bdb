package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Handler exposes the HTTP side of the notification gateway. The orders
// service posts events here when it is running without a broker.
type Handler struct {
	bot    *Bot
	logger *slog.Logger
}

func NewHandler(bot *Bot, logger *slog.Logger) *Handler {
	return &Handler{
		bot:    bot,
		logger: logger,
	}
}

func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var event domain.OrderEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if event.Type == "" || event.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "type and order_id are required")
		return
	}

	if err := h.bot.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle event", "type", event.Type, "order_id", event.OrderID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
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
