package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
)

// SettingsHandler handles HTTP requests for pricing settings endpoints.
type SettingsHandler struct {
	service *service.SettingsService
	logger  *slog.Logger
}

// NewSettingsHandler creates a new settings HTTP handler.
func NewSettingsHandler(svc *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Handlers ---

// GetPricingSettings handles GET /api/v1/settings/pricing
func (h *SettingsHandler) GetPricingSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetPricingSettings(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: settings})
}

// UpdatePricingSettings handles PUT /api/v1/settings/pricing
//
// The body is the full settings document; range validation lives on the
// domain type so the service and any future import path share it.
func (h *SettingsHandler) UpdatePricingSettings(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var settings domain.PricingSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := h.service.UpdatePricingSettings(r.Context(), settings); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: settings})
}
