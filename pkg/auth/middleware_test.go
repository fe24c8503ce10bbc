package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := ClaimsFromContext(r.Context()); c != nil {
			w.Header().Set("X-Subject", c.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	v := staticValidator{token: "good", claims: &Claims{Subject: "user-1", Role: "viewer"}}
	h := Middleware(v, WithSkipPaths("/healthz"))(okHandler())

	tests := []struct {
		name    string
		path    string
		header  string
		status  int
		subject string
	}{
		{"valid", "/x", "Bearer good", http.StatusOK, "user-1"},
		{"lowercase_scheme", "/x", "bearer good", http.StatusOK, "user-1"},
		{"missing", "/x", "", http.StatusUnauthorized, ""},
		{"wrong_scheme", "/x", "Basic Zm9v", http.StatusUnauthorized, ""},
		{"empty_token", "/x", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid", "/x", "Bearer bad", http.StatusUnauthorized, ""},
		{"skipped_path", "/healthz", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.subject, rec.Header().Get("X-Subject"))
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	v := staticValidator{token: "good", claims: &Claims{Subject: "user-1", Role: "viewer"}}

	t.Run("allowed", func(t *testing.T) {
		h := Middleware(v)(RequireRole("admin", "viewer")(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		h := Middleware(v)(RequireRole("admin")(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"FORBIDDEN"`)
	})

	t.Run("no_claims", func(t *testing.T) {
		h := RequireRole("admin")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
