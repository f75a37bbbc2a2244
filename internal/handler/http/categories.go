package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/pkg/httputil"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// CategoryHandler handles HTTP requests for category management
// endpoints.
type CategoryHandler struct {
	service *service.CategoryService
	logger  *slog.Logger
}

// NewCategoryHandler creates a new category HTTP handler.
func NewCategoryHandler(svc *service.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CategoryAttributeRequest is one default variant attribute.
type CategoryAttributeRequest struct {
	Name   string   `json:"name" validate:"required"`
	Values []string `json:"values" validate:"required,min=1"`
}

// CategoryRequest is the JSON request body for creating or updating a
// managed category. On update, a nil rakuten_category_ids means the
// mapping is untouched; an empty list clears it.
type CategoryRequest struct {
	CategoryName       string                     `json:"category_name" validate:"required,min=1,max=200"`
	CategoryIDs        []string                   `json:"category_ids"`
	RakutenCategoryIDs []string                   `json:"rakuten_category_ids"`
	GenreID            string                     `json:"genre_id"`
	PrimaryCategoryID  *int64                     `json:"primary_category_id"`
	Weight             *float64                   `json:"weight" validate:"omitempty,gte=0"`
	Length             *float64                   `json:"length" validate:"omitempty,gte=0"`
	Width              *float64                   `json:"width" validate:"omitempty,gte=0"`
	Height             *float64                   `json:"height" validate:"omitempty,gte=0"`
	SizeOption         *string                    `json:"size_option"`
	Size               *int                       `json:"size"`
	Attributes         []CategoryAttributeRequest `json:"attributes" validate:"omitempty,dive"`
}

// PrimaryCategoryRequest is the JSON request body for creating a primary
// category.
type PrimaryCategoryRequest struct {
	CategoryName       string   `json:"category_name" validate:"required,min=1,max=200"`
	DefaultCategoryIDs []string `json:"default_category_ids"`
}

func (req *CategoryRequest) toDomain() *domain.Category {
	attrs := make([]domain.CategoryAttribute, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs = append(attrs, domain.CategoryAttribute{Name: a.Name, Values: a.Values})
	}
	return &domain.Category{
		CategoryName:       req.CategoryName,
		CategoryIDs:        req.CategoryIDs,
		RakutenCategoryIDs: req.RakutenCategoryIDs,
		GenreID:            req.GenreID,
		PrimaryCategoryID:  req.PrimaryCategoryID,
		Weight:             req.Weight,
		Length:             req.Length,
		Width:              req.Width,
		Height:             req.Height,
		SizeOption:         req.SizeOption,
		Size:               req.Size,
		Attributes:         attrs,
	}
}

func parseCategoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "id must be a positive integer"},
		})
		return 0, false
	}
	return id, true
}

// --- Handlers ---

// ListCategories handles GET /api/v1/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: categories})
}

// GetCategory handles GET /api/v1/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCategoryID(w, r)
	if !ok {
		return
	}

	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: category})
}

// CreateCategory handles POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CategoryRequest
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

	category := req.toDomain()
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: category})
}

// UpdateCategory handles PUT /api/v1/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCategoryID(w, r)
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CategoryRequest
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

	category := req.toDomain()
	category.ID = id

	result, err := h.service.UpdateCategory(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"category":    category,
		"propagation": result,
	}})
}

// DeleteCategory handles DELETE /api/v1/categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCategoryID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"id":     id,
		"status": "deleted",
	}})
}

// ListPrimaryCategories handles GET /api/v1/categories/primaries
func (h *CategoryHandler) ListPrimaryCategories(w http.ResponseWriter, r *http.Request) {
	primaries, err := h.service.ListPrimaryCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: primaries})
}

// CreatePrimaryCategory handles POST /api/v1/categories/primaries
func (h *CategoryHandler) CreatePrimaryCategory(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req PrimaryCategoryRequest
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

	primary := &domain.PrimaryCategory{
		CategoryName:       req.CategoryName,
		DefaultCategoryIDs: req.DefaultCategoryIDs,
	}
	if err := h.service.CreatePrimaryCategory(r.Context(), primary); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: primary})
}

// DeletePrimaryCategory handles DELETE /api/v1/categories/primaries/{id}
func (h *CategoryHandler) DeletePrimaryCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCategoryID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePrimaryCategory(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"id":     id,
		"status": "deleted",
	}})
}
