package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_CodeStatusAndSentinel(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		wantCode     string
		wantStatus   int
		wantSentinel error
	}{
		{
			name:         "not found",
			err:          NotFound("product", "718391341234"),
			wantCode:     "NOT_FOUND",
			wantStatus:   http.StatusNotFound,
			wantSentinel: ErrNotFound,
		},
		{
			name:         "already exists",
			err:          AlreadyExists("origin product", "product_id", "718391341234"),
			wantCode:     "ALREADY_EXISTS",
			wantStatus:   http.StatusConflict,
			wantSentinel: ErrAlreadyExists,
		},
		{
			name:         "invalid input",
			err:          InvalidInput("product_id is required"),
			wantCode:     "INVALID_INPUT",
			wantStatus:   http.StatusBadRequest,
			wantSentinel: ErrInvalidInput,
		},
		{
			name:         "unauthorized",
			err:          Unauthorized("invalid license key"),
			wantCode:     "UNAUTHORIZED",
			wantStatus:   http.StatusUnauthorized,
			wantSentinel: ErrUnauthorized,
		},
		{
			name:         "forbidden",
			err:          Forbidden("pprof is restricted"),
			wantCode:     "FORBIDDEN",
			wantStatus:   http.StatusForbidden,
			wantSentinel: ErrForbidden,
		},
		{
			name:         "conflict",
			err:          Conflict("registration status changed concurrently"),
			wantCode:     "CONFLICT",
			wantStatus:   http.StatusConflict,
			wantSentinel: ErrConflict,
		},
		{
			name:         "upstream",
			err:          Upstream("rakuten", 400, ""),
			wantCode:     "UPSTREAM_ERROR",
			wantStatus:   http.StatusBadGateway,
			wantSentinel: ErrUpstream,
		},
		{
			name:         "quota exceeded",
			err:          QuotaExceeded("translator"),
			wantCode:     "QUOTA_EXCEEDED",
			wantStatus:   http.StatusTooManyRequests,
			wantSentinel: ErrQuotaExceeded,
		},
		{
			name:         "transient",
			err:          Transient("image fetch failed", nil),
			wantCode:     "TRANSIENT",
			wantStatus:   http.StatusServiceUnavailable,
			wantSentinel: ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.wantSentinel)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	bare := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", bare.Error())

	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: errors.New("db connection lost")}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withCause.Error())
}

func TestAppError_UnwrapNilWhenNoCause(t *testing.T) {
	assert.Nil(t, (&AppError{Code: "X", Message: "y"}).Unwrap())
}

func TestNotFound_MessageNamesResourceAndID(t *testing.T) {
	err := NotFound("origin product", "718391341234")
	assert.Equal(t, "origin product with id 718391341234 not found", err.Message)
}

func TestAlreadyExists_MessageNamesField(t *testing.T) {
	err := AlreadyExists("origin product", "product_id", "718391341234")
	assert.Contains(t, err.Message, "origin product")
	assert.Contains(t, err.Message, `product_id "718391341234"`)
}

func TestUpstream_MessageCarriesRemoteDetail(t *testing.T) {
	t.Run("body included", func(t *testing.T) {
		err := Upstream("rakuten", 400, `{"errors":[{"code":"IC04-001"}]}`)
		assert.Equal(t, `rakuten returned status 400: {"errors":[{"code":"IC04-001"}]}`, err.Message)
	})

	t.Run("empty body omitted", func(t *testing.T) {
		err := Upstream("object store", 503, "")
		assert.Equal(t, "object store returned status 503", err.Message)
	})

	t.Run("long body truncated", func(t *testing.T) {
		err := Upstream("translator", 500, strings.Repeat("x", 2000))
		assert.Less(t, len(err.Message), 600)
		assert.True(t, strings.HasSuffix(err.Message, "..."))
	})
}

func TestInternal_HidesDetailButKeepsCause(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	err := Internal(cause)

	assert.Equal(t, "an internal error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestTransient_KeepsCauseChain(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Transient("image fetch failed", cause)

	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestWrap_PreservesChain(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get origin product")
	assert.Equal(t, "get origin product: resource not found", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestHTTPStatus_SentinelMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
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

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(fmt.Errorf("wrapped: %w", tt.err)),
				"mapping should survive wrapping")
		})
	}
}

func TestHTTPStatus_AppErrorStatusWins(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(QuotaExceeded("rakuten")))

	custom := &AppError{Code: "TEAPOT", Message: "short and stout", Status: http.StatusTeapot}
	assert.Equal(t, http.StatusTeapot, HTTPStatus(fmt.Errorf("outer: %w", custom)))
}

func TestHTTPStatus_UnknownErrorIs500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}
