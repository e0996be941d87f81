package inquiry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"rateright/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID    string `json:"provider_id"`
		ServiceType   string `json:"service_type"`
		RequesterName string `json:"requester_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ProviderID == "" || req.ServiceType == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "provider_id and service_type are required", http.StatusBadRequest)
		return
	}

	inq, err := h.service.Send(r.Context(), req.ProviderID, req.ServiceType, req.RequesterName)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrDuplicate):
			h.writeError(r.Context(), w, "CONFLICT", err.Error(), http.StatusConflict)
		case errors.Is(err, ErrNoEmail):
			h.writeError(r.Context(), w, "NO_CONTACT_EMAIL", err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.ErrorContext(r.Context(), "failed to send inquiry", "error", err)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": inq}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) CheckReplies(w http.ResponseWriter, r *http.Request) {
	processed, err := h.service.CheckReplies(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "reply check failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{"replies_processed": processed}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) ListByProvider(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider_id")

	out, err := h.service.ListByProvider(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "failed to list inquiries", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []Inquiry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": out}); err != nil {
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
