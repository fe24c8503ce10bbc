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

// Package correlation attaches a correlation identifier to every request so
// logs and outbound calls can be linked across services.
package correlation

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Header is the wire name of the correlation identifier.
const Header = "X-Correlation-Id"

// MaxLength bounds accepted inbound identifiers.
const MaxLength = 128

type contextKey struct{}

// WithID returns a context carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identifier stored in ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromRequest returns the identifier from the request context, falling back
// to the inbound header.
func FromRequest(r *http.Request) (string, bool) {
	if id, ok := FromContext(r.Context()); ok {
		return id, true
	}
	if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
		return id, true
	}
	return "", false
}

// New returns a fresh identifier.
func New() string {
	return uuid.NewString()
}

// Middleware reuses a valid inbound identifier or generates one, stores it in
// the request context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if !valid(id) {
			id = New()
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

func valid(id string) bool {
	if id == "" || len(id) > MaxLength {
		return false
	}
	for _, c := range id {
		if c > unicode.MaxASCII || !unicode.IsPrint(c) {
			return false
		}
	}
	return true
}
