package observation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

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
		ProviderID  string  `json:"provider_id"`
		ServiceType string  `json:"service_type"`
		Price       float64 `json:"price"`
		Currency    string  `json:"currency"`
		SourceType  string  `json:"source_type"`
		SourceURL   string  `json:"source_url"`
		ObservedAt  string  `json:"observed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	o := &Observation{
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		Price:       req.Price,
		Currency:    req.Currency,
		SourceType:  SourceType(req.SourceType),
		SourceURL:   req.SourceURL,
	}
	if o.SourceType == "" {
		o.SourceType = SourceManual
	}
	if req.ObservedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "observed_at must be RFC 3339", http.StatusBadRequest)
			return
		}
		o.ObservedAt = ts
	}

	if err := h.service.Record(r.Context(), o); err != nil {
		if errors.Is(err, ErrValidation) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "failed to record observation", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": o}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out, err := h.service.ListByProvider(r.Context(), providerID, limit)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "failed to list observations", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []Observation{}
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
