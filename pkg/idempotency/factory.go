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

	"github.com/kegz/primeqa-common/pkg/config"
	"github.com/kegz/primeqa-common/pkg/tenant"
)

// NewFromConfig builds a guard from configuration. It returns nil when the
// guard is disabled. opts are applied after the configured values.
func NewFromConfig(cfg *config.IdempotencyConfig, opts ...Option) *Guard {
	if cfg == nil || !cfg.IsEnabled() {
		return nil
	}

	base := []Option{WithTTL(cfg.TTL)}
	if cfg.Scope == "tenant" {
		base = append(base, WithScope(tenantScope))
	}
	if cfg.InFlightConflict {
		base = append(base, WithInFlightConflict())
	}
	return New(append(base, opts...)...)
}

func tenantScope(r *http.Request) string {
	id, _ := tenant.FromRequest(r)
	return id
}
