package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// MaterializeHandler handles HTTP requests for product materialization.
type MaterializeHandler struct {
	service *service.MaterializerService
	quota   *imaging.QuotaFlag
	logger  *slog.Logger
}

// NewMaterializeHandler creates a new materialization HTTP handler.
func NewMaterializeHandler(svc *service.MaterializerService, quota *imaging.QuotaFlag, logger *slog.Logger) *MaterializeHandler {
	return &MaterializeHandler{
		service: svc,
		quota:   quota,
		logger:  logger,
	}
}

// --- Request DTOs ---

// MaterializeRequest is the JSON request body for batch materialization.
type MaterializeRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
}

// --- Handlers ---

// Materialize handles POST /api/v1/materialize
//
// When the image transform quota degraded during the run the response
// carries X-Quota-Degraded: 1; items still materialize with whatever
// images could be produced.
func (h *MaterializeHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req MaterializeRequest
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

	result := h.service.MaterializeBatch(r.Context(), req.ProductIDs)

	if h.quota.Degraded() {
		w.Header().Set("X-Quota-Degraded", "1")
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
