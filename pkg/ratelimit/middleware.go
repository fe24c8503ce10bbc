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

package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/response"
)

type decisionKey struct{}

// DecisionFromContext returns the decision Middleware made for the request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// Middleware enforces the limit. Denied requests get a 429 error envelope
// with Retry-After. Every decided request carries X-RateLimit-* headers.
// A key function error ends the request with a 500.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := l.Check(r)
		if err != nil {
			l.logger.Error("rate limit key derivation failed", "path", r.URL.Path, "error", err)
			response.Error(w, r, apperror.Internal("internal server error").WithCause(err))
			return
		}

		addRateLimitHeaders(w, d)

		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(d.RetryAfter), 10))
			l.logger.Debug("rate limited", "key", d.Key, "count", d.Count, "limit", d.Limit)
			response.Error(w, r, d.Err())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, d)))
	})
}

func addRateLimitHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(d.Limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}
