package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// RegistrationHandler handles HTTP requests for marketplace registration
// endpoints.
type RegistrationHandler struct {
	service *service.RegistrationService
	logger  *slog.Logger
}

// NewRegistrationHandler creates a new registration HTTP handler.
func NewRegistrationHandler(svc *service.RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for batch item registration.
type RegisterRequest struct {
	ItemNumbers []string `json:"item_numbers" validate:"required,min=1,dive,required"`
}

// RegisterImagesRequest is the JSON request body for cabinet image upload.
type RegisterImagesRequest struct {
	ItemNumber string `json:"item_number" validate:"required"`
}

// RegisterInventoryRequest is the JSON request body for variant inventory upsert.
type RegisterInventoryRequest struct {
	ItemNumber string `json:"item_number" validate:"required"`
}

// ReconcileRequest is the JSON request body for status reconciliation.
type ReconcileRequest struct {
	ItemNumbers []string `json:"item_numbers" validate:"required,min=1,dive,required"`
}

// DeleteListingsRequest is the JSON request body for marketplace deletion.
type DeleteListingsRequest struct {
	ItemNumbers []string `json:"item_numbers" validate:"required,min=1,dive,required"`
}

// --- Handlers ---

// Register handles POST /api/v1/registration/items
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result := h.service.RegisterBatch(r.Context(), req.ItemNumbers)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// RegisterImages handles POST /api/v1/registration/images
func (h *RegistrationHandler) RegisterImages(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.RegisterImages(r.Context(), req.ItemNumber)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// RegisterInventory handles POST /api/v1/registration/inventory
func (h *RegistrationHandler) RegisterInventory(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.RegisterInventory(r.Context(), req.ItemNumber)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Reconcile handles POST /api/v1/registration/reconcile
func (h *RegistrationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result := h.service.ReconcileMany(r.Context(), req.ItemNumbers)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Delete handles POST /api/v1/registration/delete
func (h *RegistrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req DeleteListingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result := h.service.Delete(r.Context(), req.ItemNumbers)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
