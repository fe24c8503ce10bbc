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

// Package metrics holds the instruments shared by the limiter, the
// idempotency guard, the outbound client, the store sweeper and the server
// middleware.
//
// Instruments are OpenTelemetry meters read by the Prometheus exporter, so
// the series appear on whatever registry the host serves at /metrics.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/kegz/primeqa-common"

// durationBuckets are in seconds.
var durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics is safe for concurrent use.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	rateLimitDecisions  metric.Int64Counter
	idempotencyRequests metric.Int64Counter
	clientAttempts      metric.Int64Counter
	clientDuration      metric.Float64Histogram
	storeEvictions      metric.Int64Counter
	serverRequests      metric.Int64Counter
	serverDuration      metric.Float64Histogram
}

// New creates the instruments and registers their exporter on reg. A nil
// reg uses the default registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	m := &Metrics{provider: provider}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.rateLimitDecisions, "primeqa_ratelimit_decisions_total", "Rate limit decisions by result"},
		{&m.idempotencyRequests, "primeqa_idempotency_requests_total", "Idempotency guard outcomes"},
		{&m.clientAttempts, "primeqa_httpclient_attempts_total", "Outbound HTTP attempts by method and outcome"},
		{&m.storeEvictions, "primeqa_store_evictions_total", "Entries removed by periodic sweeps"},
		{&m.serverRequests, "primeqa_http_requests_total", "Inbound HTTP requests by method and status code"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	m.clientDuration, err = meter.Float64Histogram(
		"primeqa_httpclient_request_duration_seconds",
		metric.WithDescription("Duration of logical outbound calls including retries"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client duration histogram: %w", err)
	}

	m.serverDuration, err = meter.Float64Histogram(
		"primeqa_http_request_duration_seconds",
		metric.WithDescription("Duration of inbound HTTP requests"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server duration histogram: %w", err)
	}

	return m, nil
}

// Shutdown stops the meter provider. Later recordings are dropped.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordRateLimit counts an allow or deny decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.rateLimitDecisions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("result", result)))
}

// RecordIdempotency counts a guard outcome (pass_through, captured, replayed, conflict).
func (m *Metrics) RecordIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyRequests.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAttempt counts one outbound attempt.
func (m *Metrics) RecordAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.clientAttempts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("method", method), attribute.String("outcome", outcome)))
}

// RecordCall observes the duration of a logical outbound call.
func (m *Metrics) RecordCall(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.clientDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("method", method)))
}

// RecordEvictions adds n sweep evictions for store.
func (m *Metrics) RecordEvictions(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.storeEvictions.Add(context.Background(), int64(n),
		metric.WithAttributes(attribute.String("store", store)))
}

// RecordHTTPRequest counts one served request and observes its duration.
func (m *Metrics) RecordHTTPRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.serverRequests.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("method", method), attribute.String("status_code", strconv.Itoa(status))))
	m.serverDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("method", method)))
}
