package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/RelistGo/internal/repository"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
	"github.com/utafrali/RelistGo/pkg/pagination"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// ProductHandler handles HTTP requests for canonical and origin product
// endpoints.
type ProductHandler struct {
	service *service.ProductService
	export  *service.ExportService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, export *service.ExportService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		export:  export,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SetVisibilityRequest is the JSON request body for batch hide/unhide.
type SetVisibilityRequest struct {
	ItemNumbers []string `json:"item_numbers" validate:"required,min=1,dive,required"`
	Hidden      bool     `json:"hidden"`
}

// DeleteProductsRequest is the JSON request body for batch row deletion.
type DeleteProductsRequest struct {
	ItemNumbers []string `json:"item_numbers" validate:"required,min=1,dive,required"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.CanonicalFilter{
		Limit:  params.PerPage,
		Offset: params.Offset,
	}

	if v := r.URL.Query().Get("sort_by"); v != "" {
		if v != "created_at" && v != "rakuten_registered_at" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_by must be one of: created_at, rakuten_registered_at"},
			})
			return
		}
		filter.SortBy = v
	}
	if v := r.URL.Query().Get("sort_order"); v != "" {
		if v != "asc" && v != "desc" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_order must be one of: asc, desc"},
			})
			return
		}
		filter.SortOrder = v
	}

	page, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(page.Products, page.Total, params.Page, params.PerPage))
}

// GetProduct handles GET /api/v1/products/{itemNumber}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "itemNumber"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// ListOrigins handles GET /api/v1/origins
func (h *ProductHandler) ListOrigins(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.OriginFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("registration_status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "registration_status must be a valid integer"},
			})
			return
		}
		filter.RegistrationStatus = &status
	}
	if v := r.URL.Query().Get("main_category"); v != "" {
		filter.MainCategory = &v
	}
	if v := r.URL.Query().Get("middle_category"); v != "" {
		filter.MiddleCategory = &v
	}
	if v := r.URL.Query().Get("search"); v != "" {
		filter.Search = &v
	}

	page, err := h.service.ListOrigins(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(page.Products, page.Total, params.Page, params.PerPage))
}

// GetOrigin handles GET /api/v1/origins/{productId}
func (h *ProductHandler) GetOrigin(w http.ResponseWriter, r *http.Request) {
	origin, err := h.service.GetOrigin(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: origin})
}

// SetVisibility handles PUT /api/v1/products/visibility
func (h *ProductHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SetVisibilityRequest
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

	updated, err := h.service.SetHidden(r.Context(), req.ItemNumbers, req.Hidden)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"requested": len(req.ItemNumbers),
		"updated":   updated,
		"hidden":    req.Hidden,
	}})
}

// DeleteProducts handles POST /api/v1/products/batch-delete
//
// Rows are removed from the store only; marketplace listings are deleted
// through POST /api/v1/registration/delete.
func (h *ProductHandler) DeleteProducts(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req DeleteProductsRequest
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

	deleted, err := h.service.DeleteRows(r.Context(), req.ItemNumbers)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"requested": len(req.ItemNumbers),
		"deleted":   deleted,
	}})
}

// RemoveImage handles DELETE /api/v1/products/{itemNumber}/images?location=...
func (h *ProductHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	itemNumber := chi.URLParam(r, "itemNumber")
	location := r.URL.Query().Get("location")

	if err := h.service.RemoveImage(r.Context(), itemNumber, location); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{
		"item_number": itemNumber,
		"removed":     location,
	}})
}

// ExportProducts handles GET /api/v1/products/export
//
// The workbook is rendered fully before the first byte goes out so an
// export failure still yields a proper JSON error response.
func (h *ProductHandler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	rows, err := h.export.ExportProducts(r.Context(), &buf)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	filename := fmt.Sprintf("products_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Export-Rows", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
