// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kegz/primeqa-common/pkg/response"
)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

type middleware struct {
	validator TokenValidator
	logger    *slog.Logger
	errors    response.ErrorWriter
	skip      map[string]bool
}

// WithLogger sets the logger for rejected tokens.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		m.logger = l
	}
}

// WithSkipPaths lets exact paths through unauthenticated, e.g. health checks.
func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(m *middleware) {
		for _, p := range paths {
			m.skip[p] = true
		}
	}
}

// Middleware requires a valid "Authorization: Bearer <jwt>" header and stores
// the resulting Claims in the request context.
func Middleware(v TokenValidator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{validator: v, skip: make(map[string]bool)}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.errors.Logger = m.logger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				m.errors.Write(w, r, ErrUnauthorized)
				return
			}

			claims, err := m.validator.ValidateToken(r.Context(), token)
			if err != nil {
				m.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				m.errors.Write(w, r, ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole allows only requests whose claims carry one of roles.
// It must run after Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				response.Error(w, r, ErrUnauthorized)
				return
			}
			if !claims.HasAnyRole(roles...) {
				response.Error(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
