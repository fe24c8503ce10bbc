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
	"github.com/kegz/primeqa-common/pkg/config"
)

// NewFromConfig builds a limiter from configuration. It returns nil when
// rate limiting is disabled. opts are applied after the configured values.
func NewFromConfig(cfg *config.RateLimitConfig, opts ...Option) *Limiter {
	if cfg == nil || !cfg.IsEnabled() {
		return nil
	}

	var keyFunc KeyFunc = DefaultKeyFunc
	if cfg.KeyHeader != "" {
		keyFunc = HeaderKeyFunc(cfg.KeyHeader, DefaultKeyFunc)
	}
	if cfg.PerTenant {
		keyFunc = TenantKeyFunc(keyFunc)
	}

	base := []Option{
		WithWindow(cfg.Window),
		WithKeyFunc(keyFunc),
		WithMessage(cfg.Message),
	}
	if cfg.Max != nil {
		base = append(base, WithMax(*cfg.Max))
	}

	return New(append(base, opts...)...)
}
