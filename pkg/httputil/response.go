// Package httputil shapes the JSON bodies the HTTP API sends back: a
// shared response envelope, error-to-status mapping, and pagination
// metadata for list endpoints.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
	"github.com/utafrali/RelistGo/pkg/logger"
	"github.com/utafrali/RelistGo/pkg/validator"
)

// Response is the envelope for every JSON body the API returns. Exactly one
// of Data or Error is populated.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse pairs a machine-readable code with a human-readable message.
// Fields carries per-field validation detail and RequestID echoes the
// request's correlation ID so a client can quote it when reporting a problem.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here cannot be
	// reported to the client.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto an HTTP status and the error envelope.
// *AppError values carry their own status and code. Bare sentinel errors
// get a generic mapping. Anything unrecognized is logged and reported as
// an internal error without leaking the underlying message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	// The request-scoped logger carries correlation and trace attributes;
	// fall back to the handler's own logger when the middleware is absent.
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	status, code, message := classify(err)

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

// classify maps sentinel errors onto a status, code, and client-safe message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	}
	return apperrors.HTTPStatus(err), "INTERNAL_ERROR", "an internal error occurred"
}

// WriteValidationError renders struct-validation failures with per-field
// messages. Errors that are not a *validator.ValidationError fall back to a
// plain INVALID_INPUT response.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// PaginatedResponse wraps one page of results with the listing metadata the
// console paginator consumes.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse fills in the page arithmetic for a result slice.
// A nil slice is rendered as an empty JSON array rather than null.
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	totalPages := totalCount / perPage
	if totalCount%perPage > 0 {
		totalPages++
	}
	if data == nil {
		data = []T{}
	}
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
