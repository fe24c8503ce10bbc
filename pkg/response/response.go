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

// Package response writes the standard JSON success and error envelopes.
//
// Errors are classified with apperror.From, so any error can be passed to
// Error. The envelope is
//
//	{"error":{"code":"...","message":"...","details":{...},"correlation_id":"..."}}
//
// where details and correlation_id are omitted when absent.
package response

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/oapi-codegen/nullable"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/correlation"
)

// ErrorBody is the inner error object.
type ErrorBody struct {
	Code          apperror.Code                     `json:"code"`
	Message       string                            `json:"message"`
	Details       nullable.Nullable[map[string]any] `json:"details,omitempty"`
	CorrelationID nullable.Nullable[string]         `json:"correlation_id,omitempty"`
}

// ErrorEnvelope wraps ErrorBody.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// ErrorWriter renders errors. The zero value hides details.
type ErrorWriter struct {
	// ExposeDetails includes apperror.Error.Details in the envelope.
	ExposeDetails bool

	// Logger receives 5xx causes. Defaults to slog.Default().
	Logger *slog.Logger
}

var defaultWriter = ErrorWriter{ExposeDetails: true}

type writerKey struct{}

// Middleware makes Error render with ew for every request below it.
func (ew ErrorWriter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), writerKey{}, ew)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Error writes err with the ErrorWriter installed by Middleware, or with
// one that exposes details when none is.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ew := defaultWriter
	if r != nil {
		if v, ok := r.Context().Value(writerKey{}).(ErrorWriter); ok {
			ew = v
		}
	}
	ew.Write(w, r, err)
}

// Write classifies err and writes the error envelope.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperror.From(err)
	if ae == nil {
		ae = apperror.Internal("internal server error")
	}
	status := ae.StatusCode()

	logger := ew.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var body ErrorBody
	body.Code = ae.Code
	body.Message = ae.Message
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	if ew.ExposeDetails && len(ae.Details) > 0 {
		body.Details = nullable.NewNullableWithValue(ae.Details)
	}

	var cid string
	if r != nil {
		cid, _ = correlation.FromRequest(r)
	}
	if cid != "" {
		body.CorrelationID = nullable.NewNullableWithValue(cid)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"code", ae.Code,
			"status", status,
			"correlation_id", cid,
			"error", err)
	}

	JSON(w, status, ErrorEnvelope{Error: body})
}
