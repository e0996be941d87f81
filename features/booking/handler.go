package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"rateright/backend/features/provider"
	"rateright/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID    string `json:"provider_id"`
		ServiceType   string `json:"service_type"`
		RequesterName string `json:"requester_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ProviderID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "provider_id is required", http.StatusBadRequest)
		return
	}

	b, err := h.service.Book(r.Context(), req.ProviderID, req.ServiceType, req.RequesterName)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "provider not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "booking failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": b}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
