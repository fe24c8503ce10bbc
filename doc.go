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

// Package primeqa is the shared HTTP middleware and utility layer of the
// primeqa services.
//
// The library lives under pkg/:
//
//   - pkg/expiring: generic in-memory store with per-entry expiry and a
//     background sweeper
//   - pkg/ratelimit: fixed-window rate limiter middleware
//   - pkg/idempotency: replay of POST responses keyed by Idempotency-Key
//   - pkg/httpclient: outbound JSON client with timeouts, linear retry
//     and header propagation
//   - pkg/auth, pkg/tenant, pkg/correlation: request identity
//   - pkg/apperror, pkg/response: error taxonomy and JSON envelopes
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: ambient setup
//
// # Quick Start
//
//	limiter := ratelimit.New(ratelimit.WithMax(100), ratelimit.WithWindow(time.Minute))
//	guard := idempotency.New(idempotency.WithTTL(5 * time.Minute))
//
//	r := chi.NewRouter()
//	r.Use(correlation.Middleware, limiter.Middleware, guard.Middleware)
//
// cmd/primeqa wires the full stack from a YAML file:
//
//	primeqa serve --config primeqa.yaml
//
// State is per process. Limiter counters and captured responses do not
// survive a restart and are not shared between instances.
package primeqa
