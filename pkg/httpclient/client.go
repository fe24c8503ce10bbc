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

// Package httpclient performs outbound HTTP calls with per-attempt timeouts,
// method-aware linear retry, and classification of failures into the
// apperror taxonomy.
//
// Only GET, HEAD and OPTIONS are retried, on statuses >= 500 other than 501
// and on connection-refused, host-not-found and timeout errors. Dependency
// failures surface as apperror.Dependency (503). Responses below 500 come
// back as *StatusError with the original status. Any other error, including
// cancellation of the caller's context, is returned unmodified.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kegz/primeqa-common/pkg/metrics"
)

const tracerName = "github.com/kegz/primeqa-common/pkg/httpclient"

// Response is a successful (2xx) response.
type Response struct {
	// Data is the decoded JSON value, or the body as a string for other
	// content types.
	Data    any
	Body    []byte
	Status  int
	Headers http.Header
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client is immutable after New and safe for concurrent use.
type Client struct {
	baseURL  string
	defaults Options
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	sleep    SleepFunc
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL joins relative paths onto base.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithDefaults sets client-level options, overridden per call.
func WithDefaults(o Options) Option {
	return func(c *Client) {
		c.defaults = o
	}
}

// WithHTTPClient sets the underlying client. Its Timeout should be zero or
// larger than the per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records attempts and call durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// BaseURL returns the configured base.
func (c *Client) BaseURL() string { return c.baseURL }

// Request performs one logical call.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts *Options) (*Response, error) {
	start := time.Now()
	method = strings.ToUpper(method)
	s := resolve(c.defaults, opts)
	target := c.resolveURL(rawURL)

	var payload []byte
	if s.body != nil {
		b, err := json.Marshal(s.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}

	ctx, span := c.tracer.Start(ctx, "httpclient.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLFull(target),
		),
	)
	defer span.End()
	defer func() { c.metrics.RecordCall(method, time.Since(start)) }()

	headers := buildHeaders(ctx, s)

	attempts := 1
	if retryableMethod(method) {
		attempts += s.retries
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(ctx, method, target, headers, payload, s.timeout)
		last := attempt >= attempts

		if err == nil && resp.Status >= 200 && resp.Status < 300 {
			c.metrics.RecordAttempt(method, "success")
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.Status), attribute.Int("httpclient.attempts", attempt))
			return resp, nil
		}

		if err == nil {
			span.AddEvent("attempt", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				semconv.HTTPResponseStatusCode(resp.Status),
			))

			if !last && retryableStatus(resp.Status) {
				c.metrics.RecordAttempt(method, "retry")
				if err := c.backoff(ctx, s.retryDelay, attempt, "status", resp.Status, target); err != nil {
					return nil, err
				}
				continue
			}

			c.metrics.RecordAttempt(method, "failure")
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.Status))
			if resp.Status >= 500 {
				depErr := dependencyStatusError(target, resp.Status, attempt)
				c.fail(span, depErr, method, target, attempt)
				return nil, depErr
			}
			statusErr := &StatusError{
				Method:  method,
				URL:     target,
				Status:  resp.Status,
				Headers: resp.Headers,
				Body:    resp.Body,
				Data:    resp.Data,
			}
			span.SetStatus(codes.Error, statusErr.Error())
			return nil, statusErr
		}

		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		))

		// The caller's context ending is not a dependency failure.
		if ctx.Err() != nil {
			c.metrics.RecordAttempt(method, "canceled")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		class := classify(err)
		if class == classNone {
			c.metrics.RecordAttempt(method, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if !last {
			c.metrics.RecordAttempt(method, "retry")
			if err := c.backoff(ctx, s.retryDelay, attempt, "error", string(class), target); err != nil {
				return nil, err
			}
			continue
		}

		c.metrics.RecordAttempt(method, "failure")
		depErr := dependencyTransportError(target, err, attempt)
		c.fail(span, depErr, method, target, attempt)
		return nil, depErr
	}
}

func (c *Client) attempt(ctx context.Context, method, target string, headers http.Header, payload []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = headers.Clone()
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Data:    parseBody(resp.Header.Get("Content-Type"), raw),
		Body:    raw,
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}, nil
}

func (c *Client) backoff(ctx context.Context, base time.Duration, attempt int, reasonKey string, reason any, target string) error {
	delay := base * time.Duration(attempt)
	c.logger.Debug("retrying outbound request",
		"url", target,
		"attempt", attempt,
		"delay", delay,
		reasonKey, reason)
	return c.sleep(ctx, delay)
}

func (c *Client) fail(span trace.Span, err error, method, target string, attempts int) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("outbound request failed",
		"method", method,
		"url", target,
		"attempts", attempts,
		"error", err)
}

func (c *Client) resolveURL(raw string) string {
	if c.baseURL == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}

// parseBody decodes JSON bodies and returns everything else as text. A body
// labelled JSON that does not parse is returned as text.
func parseBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
