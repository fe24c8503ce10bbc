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

package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kegz/primeqa-common/pkg/correlation"
)

// Library defaults, used when neither the call nor the client sets a value.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetries    = 2
	DefaultRetryDelay = time.Second
)

// Inbound carries trust context copied from the request being served.
type Inbound struct {
	// Authorization is the inbound Authorization header, copied verbatim.
	Authorization string

	// CorrelationID is copied to X-Correlation-Id.
	CorrelationID string
}

// InboundFromRequest captures the Authorization header and correlation ID
// of r. The correlation ID comes from the request context when
// correlation.Middleware ran, else from the inbound header.
func InboundFromRequest(r *http.Request) *Inbound {
	if r == nil {
		return nil
	}
	in := &Inbound{Authorization: r.Header.Get("Authorization")}
	in.CorrelationID, _ = correlation.FromRequest(r)
	return in
}

// Options tune a single call. Zero values inherit from the client defaults,
// then from the library defaults.
type Options struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retries is the number of additional attempts for GET, HEAD and OPTIONS.
	Retries *int

	// RetryDelay is the linear backoff base: attempt n waits RetryDelay*n.
	RetryDelay time.Duration

	// Headers are merged over the defaults. Per-call values replace client
	// values for the same name.
	Headers http.Header

	// PropagateAuth copies Inbound.Authorization.
	PropagateAuth *bool

	// PropagateCorrelation copies the correlation ID from Inbound or ctx.
	PropagateCorrelation *bool

	// Body is encoded as JSON when non-nil.
	Body any

	// Inbound is the request being served, if any.
	Inbound *Inbound
}

// Int returns a pointer to n, for Options.Retries.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for the propagation flags.
func Bool(b bool) *bool { return &b }

// merge returns o with every value set in over applied on top.
func (o Options) merge(over *Options) Options {
	if over == nil {
		return o
	}
	out := o
	if over.Timeout > 0 {
		out.Timeout = over.Timeout
	}
	if over.Retries != nil {
		out.Retries = over.Retries
	}
	if over.RetryDelay > 0 {
		out.RetryDelay = over.RetryDelay
	}
	if len(over.Headers) > 0 {
		merged := o.Headers.Clone()
		if merged == nil {
			merged = make(http.Header, len(over.Headers))
		}
		for k, v := range over.Headers {
			merged[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
		out.Headers = merged
	}
	if over.PropagateAuth != nil {
		out.PropagateAuth = over.PropagateAuth
	}
	if over.PropagateCorrelation != nil {
		out.PropagateCorrelation = over.PropagateCorrelation
	}
	if over.Body != nil {
		out.Body = over.Body
	}
	if over.Inbound != nil {
		out.Inbound = over.Inbound
	}
	return out
}

// settings is a fully resolved Options.
type settings struct {
	timeout              time.Duration
	retries              int
	retryDelay           time.Duration
	headers              http.Header
	propagateAuth        bool
	propagateCorrelation bool
	body                 any
	inbound              *Inbound
}

func libraryDefaults() Options {
	return Options{
		Timeout:              DefaultTimeout,
		Retries:              Int(DefaultRetries),
		RetryDelay:           DefaultRetryDelay,
		PropagateAuth:        Bool(true),
		PropagateCorrelation: Bool(true),
	}
}

func resolve(client Options, call *Options) settings {
	o := libraryDefaults().merge(&client).merge(call)
	s := settings{
		timeout:              o.Timeout,
		retries:              max(*o.Retries, 0),
		retryDelay:           o.RetryDelay,
		headers:              o.Headers,
		propagateAuth:        *o.PropagateAuth,
		propagateCorrelation: *o.PropagateCorrelation,
		body:                 o.Body,
		inbound:              o.Inbound,
	}
	return s
}

// buildHeaders applies the wire rules: JSON content type, caller headers,
// then propagated Authorization and X-Correlation-Id.
func buildHeaders(ctx context.Context, s settings) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")

	for k, v := range s.headers {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	if s.propagateAuth && s.inbound != nil && s.inbound.Authorization != "" {
		h.Set("Authorization", s.inbound.Authorization)
	}

	if s.propagateCorrelation {
		id := ""
		if s.inbound != nil {
			id = strings.TrimSpace(s.inbound.CorrelationID)
		}
		if id == "" {
			id, _ = correlation.FromContext(ctx)
		}
		if id != "" {
			h.Set(correlation.Header, id)
		}
	}

	return h
}
