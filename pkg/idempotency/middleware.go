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

package idempotency

import (
	"net/http"

	"github.com/kegz/primeqa-common/pkg/response"
)

// Middleware applies the guard to next. Captured responses are buffered in
// full and emitted once through the capturing sink.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, sink, err := g.Intercept(r, w)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		switch outcome {
		case Replayed:
			return
		case PassThrough:
			next.ServeHTTP(w, r)
			return
		}

		cs, _ := sink.(*CapturingSink)
		defer func() {
			if p := recover(); p != nil {
				if cs != nil {
					cs.Abort()
				}
				panic(p)
			}
		}()

		buf := newBufferedWriter()
		next.ServeHTTP(buf, r)

		if err := sink.Send(buf.status, buf.header, buf.body.Bytes()); err != nil {
			g.logger.Warn("idempotent response write failed", "key", cs.Key(), "error", err)
		}
	})
}
