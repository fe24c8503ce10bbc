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
	"net"
	"net/http"
	"strings"

	"github.com/kegz/primeqa-common/pkg/tenant"
)

// KeyFunc derives the counter key from a request. An error aborts the
// request; it is never treated as allow or deny.
type KeyFunc func(r *http.Request) (string, error)

// UnknownKey is used when no client address can be determined.
const UnknownKey = "unknown"

// DefaultKeyFunc uses the host part of RemoteAddr, then the first hop of
// X-Forwarded-For, then UnknownKey.
func DefaultKeyFunc(r *http.Request) (string, error) {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host, nil
		}
		return addr, nil
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip, nil
		}
	}

	return UnknownKey, nil
}

// HeaderKeyFunc keys on the trimmed value of header, falling back to
// fallback (DefaultKeyFunc when nil) when the header is empty.
func HeaderKeyFunc(header string, fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = DefaultKeyFunc
	}
	return func(r *http.Request) (string, error) {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v, nil
		}
		return fallback(r)
	}
}

// TenantKeyFunc namespaces keys by the tenant resolved by tenant.Middleware,
// so tenants never share counters.
func TenantKeyFunc(fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = DefaultKeyFunc
	}
	return func(r *http.Request) (string, error) {
		key, err := fallback(r)
		if err != nil {
			return "", err
		}
		if id, ok := tenant.FromRequest(r); ok {
			return "tenant:" + id + ":" + key, nil
		}
		return key, nil
	}
}
