// Package errors defines the error vocabulary shared across the service:
// bare sentinels for errors.Is checks, and AppError values that add an HTTP
// status and a client-facing code on top of them.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for classifying failures with errors.Is. The constructors below
// wrap them into AppError values with a status attached.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrUpstream       = errors.New("upstream error")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrTransient      = errors.New("transient error")
)

// AppError is an error that knows how to present itself over HTTP. Code and
// Message are client-visible; Status picks the response code and Err keeps
// the cause reachable for errors.Is and logging.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	s := e.Code + ": " + e.Message
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, cause error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause}
}

// NotFound reports that no resource of the given kind matches id.
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a uniqueness conflict on the named field.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError("ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput flags a request the caller can fix. The message is shown to
// the client verbatim.
func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Unauthorized reports missing or unusable credentials.
func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

// Forbidden reports a request the caller is not allowed to make.
func Forbidden(message string) *AppError {
	return newAppError("FORBIDDEN", http.StatusForbidden, ErrForbidden, message)
}

// Conflict reports a precondition failure that is not a uniqueness violation,
// such as a state transition raced by another writer.
func Conflict(message string) *AppError {
	return newAppError("CONFLICT", http.StatusConflict, ErrConflict, message)
}

// Internal hides err behind a generic 500. The original error stays
// reachable through Unwrap so it can still be logged.
func Internal(err error) *AppError {
	return newAppError("INTERNAL_ERROR", http.StatusInternalServerError, err,
		"an internal error occurred")
}

// Upstream reports a failed call to an external service. The remote status
// and up to 500 bytes of the response body are folded into the message.
func Upstream(service string, status int, body string) *AppError {
	const maxBody = 500
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	msg := fmt.Sprintf("%s returned status %d", service, status)
	if body != "" {
		msg += ": " + body
	}
	return newAppError("UPSTREAM_ERROR", http.StatusBadGateway, ErrUpstream, msg)
}

// QuotaExceeded maps a remote rate-limit or quota rejection to 429.
func QuotaExceeded(service string) *AppError {
	return newAppError("QUOTA_EXCEEDED", http.StatusTooManyRequests, ErrQuotaExceeded,
		fmt.Sprintf("%s quota exhausted", service))
}

// Transient marks timeouts and connection-level failures that a retry may
// clear. The cause, when given, stays reachable through Unwrap alongside
// ErrTransient.
func Transient(message string, err error) *AppError {
	cause := error(ErrTransient)
	if err != nil {
		cause = fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return newAppError("TRANSIENT", http.StatusServiceUnavailable, cause, message)
}

// Wrap prefixes err with message, preserving the chain for errors.Is.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrQuotaExceeded, http.StatusTooManyRequests},
	{ErrUpstream, http.StatusBadGateway},
	{ErrTransient, http.StatusServiceUnavailable},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
}

// HTTPStatus resolves err to the status code it should produce. An
// AppError's own status wins over the sentinel mapping; anything
// unrecognized is a 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
