package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kegz/primeqa-common/pkg/clock"
)

func TestMiddleware_DeniesWith429(t *testing.T) {
	clk := clock.NewManual(epoch)
	l := New(WithMax(2), WithWindow(30*time.Second), WithClock(clk))

	calls := 0
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		d, ok := DecisionFromContext(r.Context())
		assert.True(t, ok)
		assert.True(t, d.Allowed)
		w.WriteHeader(http.StatusNoContent)
	}))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest("10.0.0.1:1"))
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
	assert.Equal(t, DefaultMessage, body.Error.Message)
	assert.Equal(t, float64(30), body.Error.Details["retry_after_seconds"])
}

func TestMiddleware_KeyFuncErrorIs500(t *testing.T) {
	l := New(WithKeyFunc(func(*http.Request) (string, error) {
		return "", errors.New("misconfigured")
	}))

	called := false
	h := l.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("10.0.0.1:1"))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "misconfigured")
}
