package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"rateright/backend/internal/middleware"
)

const defaultRadiusMeters = 5000

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Search handles GET /search?q&lat&lng&radius_meters. The response shape is
// a client contract; results come back at the top level, not wrapped.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "q is required", http.StatusBadRequest)
		return
	}

	lat, err := parseCoord(r.URL.Query().Get("lat"), 90)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "lat must be a latitude", http.StatusBadRequest)
		return
	}
	lng, err := parseCoord(r.URL.Query().Get("lng"), 180)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "lng must be a longitude", http.StatusBadRequest)
		return
	}

	radius := float64(defaultRadiusMeters)
	if raw := r.URL.Query().Get("radius_meters"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "radius_meters must be a positive number", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.Search(r.Context(), q, lat, lng, radius)
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "error", err, "query", q)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func parseCoord(raw string, bound float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < -bound || v > bound {
		return 0, strconv.ErrRange
	}
	return v, nil
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
