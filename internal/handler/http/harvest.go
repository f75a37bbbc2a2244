package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// HarvestHandler handles HTTP requests for upstream harvest endpoints.
type HarvestHandler struct {
	service *service.HarvestService
	logger  *slog.Logger
}

// NewHarvestHandler creates a new harvest HTTP handler.
func NewHarvestHandler(svc *service.HarvestService, logger *slog.Logger) *HarvestHandler {
	return &HarvestHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// HarvestKeywordRequest is the JSON request body for a keyword harvest.
type HarvestKeywordRequest struct {
	Keyword  string `json:"keyword" validate:"required,min=1,max=200"`
	Page     int    `json:"page" validate:"omitempty,gte=1"`
	PageSize int    `json:"page_size" validate:"omitempty,gte=1,lte=50"`
}

// HarvestCategoryRequest is the JSON request body for a category harvest.
type HarvestCategoryRequest struct {
	CategoryIDs []string `json:"category_ids" validate:"required,min=1,dive,required"`
	Page        int      `json:"page" validate:"omitempty,gte=1"`
	PageSize    int      `json:"page_size" validate:"omitempty,gte=1,lte=50"`
}

// ImageSearchRequest is the JSON request body for an upstream visual
// search. Results are returned for discovery and never persisted.
type ImageSearchRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	Page        int    `json:"page" validate:"omitempty,gte=1"`
	PageSize    int    `json:"page_size" validate:"omitempty,gte=1,lte=50"`
}

func (r *HarvestKeywordRequest) applyDefaults() {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = service.DefaultRefreshPageSize
	}
}

// --- Handlers ---

// HarvestByKeyword handles POST /api/v1/harvest/keyword
func (h *HarvestHandler) HarvestByKeyword(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req HarvestKeywordRequest
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
	req.applyDefaults()

	result, err := h.service.HarvestByKeyword(r.Context(), req.Keyword, req.Page, req.PageSize)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// HarvestByCategory handles POST /api/v1/harvest/category
func (h *HarvestHandler) HarvestByCategory(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req HarvestCategoryRequest
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
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = service.DefaultRefreshPageSize
	}

	result, err := h.service.HarvestByCategory(r.Context(), req.CategoryIDs, req.Page, req.PageSize)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// SearchByImage handles POST /api/v1/harvest/image-search
//
// Visual search payloads can be large, so this endpoint allows bodies up
// to 10MB rather than the usual 1MB.
func (h *HarvestHandler) SearchByImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req ImageSearchRequest
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
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = service.DefaultRefreshPageSize
	}

	result, err := h.service.SearchByImage(r.Context(), req.ImageBase64, req.Page, req.PageSize)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
