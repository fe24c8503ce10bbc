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

// Package ratelimit bounds the request rate per client with fixed-window
// counters held in an expiring.Store.
//
// # Basic Usage
//
//	limiter := ratelimit.New(
//	    ratelimit.WithWindow(time.Minute),
//	    ratelimit.WithMax(60),
//	)
//	r.Use(limiter.Middleware)
//
//	// or decide without the middleware
//	d, err := limiter.Check(req)
//	if err != nil {
//	    // key derivation failed
//	}
//	if !d.Allowed {
//	    return d.Err() // 429, code FORBIDDEN
//	}
//
// # Configuration
//
//	rate_limit:
//	  enabled: true
//	  window: 60s
//	  max: 10
//	  key_header: "X-Api-Key"   # optional, falls back to the client address
//	  per_tenant: true
//
// # Semantics
//
// The first request for a key opens a window of the configured length with a
// count of one. Requests are allowed while the count is below max. Once the
// window expires the next request opens a new one. A max of zero or less
// denies every request. A window of zero or less never denies, since every
// request starts a fresh window.
//
// Counter updates are atomic per key, so concurrent requests never lose
// increments.
//
// # Limitations
//
// Fixed windows allow up to twice max requests across a window boundary.
// Counters live in process memory: each instance of a service limits
// independently and restarts clear all state.
package ratelimit
