package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawStatusError struct{ status int }

func (e rawStatusError) Error() string   { return fmt.Sprintf("HTTP %d", e.status) }
func (e rawStatusError) StatusCode() int { return e.status }

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		code   Code
		status int
	}{
		{"validation", Validation("bad"), CodeValidation, http.StatusBadRequest},
		{"unauthorized", Unauthorized("who"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), CodeForbidden, http.StatusForbidden},
		{"not_found", NotFound("gone"), CodeNotFound, http.StatusNotFound},
		{"conflict", Conflict("dup"), CodeConflict, http.StatusConflict},
		{"internal", Internal("oops"), CodeInternal, http.StatusInternalServerError},
		{"dependency", Dependency("down"), CodeInternal, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("user not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestError_DetailsNeverInMessage(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	err := Dependency("dependency unavailable").
		WithDetails(map[string]any{"url": "http://svc", "originalError": cause.Error()}).
		WithCause(cause)

	assert.Equal(t, "dependency unavailable", err.Message)
	assert.NotContains(t, err.Error(), "originalError")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "http://svc", err.Details["url"])
}

func TestError_WithDetailsDoesNotMutate(t *testing.T) {
	base := Validation("bad").WithDetails(map[string]any{"a": 1})
	derived := base.WithDetails(map[string]any{"b": 2})

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}

func TestFrom(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("app_error_passthrough", func(t *testing.T) {
		orig := Conflict("dup")
		got := From(fmt.Errorf("wrap: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("status_coder_keeps_status", func(t *testing.T) {
		got := From(rawStatusError{status: http.StatusNotFound})
		require.NotNil(t, got)
		assert.Equal(t, CodeNotFound, got.Code)
		assert.Equal(t, http.StatusNotFound, got.Status)
	})

	t.Run("unknown_error_is_generic_internal", func(t *testing.T) {
		got := From(errors.New("pq: password authentication failed for user root"))
		assert.Equal(t, CodeInternal, got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.False(t, strings.Contains(got.Message, "password"))
	})
}

func TestCodeForStatus(t *testing.T) {
	cases := map[int]Code{
		400: CodeValidation,
		401: CodeUnauthorized,
		403: CodeForbidden,
		404: CodeNotFound,
		405: CodeValidation,
		409: CodeConflict,
		422: CodeValidation,
		429: CodeForbidden,
		500: CodeInternal,
		503: CodeInternal,
	}
	for status, want := range cases {
		assert.Equal(t, want, CodeForStatus(status), "status %d", status)
	}
}

func TestIsDependency(t *testing.T) {
	assert.True(t, IsDependency(fmt.Errorf("x: %w", Dependency("down"))))
	assert.False(t, IsDependency(Internal("boom")))
	assert.False(t, IsDependency(errors.New("plain")))
}
