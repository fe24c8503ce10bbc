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

// Package tenant resolves the tenant of a request and keeps requests from
// acting on behalf of another tenant.
//
// The tenant comes from validated JWT claims when present, otherwise from the
// X-Tenant-Id header. A header that disagrees with the token is rejected.
package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/auth"
	"github.com/kegz/primeqa-common/pkg/response"
)

// DefaultHeader carries the tenant identifier.
const DefaultHeader = "X-Tenant-Id"

var (
	// ErrMissing is returned when a tenant is required but none was supplied.
	ErrMissing = apperror.Forbidden("tenant required")

	// ErrMismatch is returned when the header names a different tenant than the token.
	ErrMismatch = apperror.Forbidden("tenant does not match credentials")
)

type contextKey struct{}

// WithTenant returns a context carrying id.
func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the resolved tenant.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromRequest returns the tenant stored by Middleware.
func FromRequest(r *http.Request) (string, bool) {
	return FromContext(r.Context())
}

// Resolver extracts tenants from requests.
type Resolver struct {
	// Header overrides DefaultHeader.
	Header string
}

func (res Resolver) header() string {
	if res.Header == "" {
		return DefaultHeader
	}
	return res.Header
}

// Resolve returns the tenant for r. ok is false when none is present.
func (res Resolver) Resolve(r *http.Request) (string, bool, error) {
	fromHeader := strings.TrimSpace(r.Header.Get(res.header()))

	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.TenantID != "" {
		if fromHeader != "" && fromHeader != claims.TenantID {
			return "", false, ErrMismatch
		}
		return claims.TenantID, true, nil
	}

	if fromHeader != "" {
		return fromHeader, true, nil
	}
	return "", false, nil
}

// Middleware resolves the tenant and stores it in the request context. When
// required is true, requests without a tenant are rejected.
func (res Resolver) Middleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := res.Resolve(r)
			if err != nil {
				response.Error(w, r, err)
				return
			}
			if !ok {
				if required {
					response.Error(w, r, ErrMissing)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), id)))
		})
	}
}

// Middleware is Resolver{}.Middleware.
func Middleware(required bool) func(http.Handler) http.Handler {
	return Resolver{}.Middleware(required)
}
