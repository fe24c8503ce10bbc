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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/auth"
	"github.com/kegz/primeqa-common/pkg/config"
	"github.com/kegz/primeqa-common/pkg/correlation"
	"github.com/kegz/primeqa-common/pkg/expiring"
	"github.com/kegz/primeqa-common/pkg/httpclient"
	"github.com/kegz/primeqa-common/pkg/idempotency"
	"github.com/kegz/primeqa-common/pkg/metrics"
	"github.com/kegz/primeqa-common/pkg/observability"
	"github.com/kegz/primeqa-common/pkg/ratelimit"
	"github.com/kegz/primeqa-common/pkg/response"
	"github.com/kegz/primeqa-common/pkg/tenant"
)

// app holds the middleware stack built from one Config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	validator auth.TokenValidator
	limiter   *ratelimit.Limiter
	guard     *idempotency.Guard
	client    *httpclient.Client
	sweeper   *expiring.Sweeper
	stats     *ratelimit.MemoryStats
	redis     *redis.Client
}

// appOption adjusts an app before its components are built.
type appOption func(*appDeps)

type appDeps struct {
	validator auth.TokenValidator
	redis     *redis.Client
}

// withValidator skips building a JWKS validator from config.
func withValidator(v auth.TokenValidator) appOption {
	return func(d *appDeps) { d.validator = v }
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*app, error) {
	deps := &appDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		metrics:   m,
		validator: deps.validator,
	}

	if a.validator == nil && cfg.Auth.IsEnabled() {
		v, err := auth.NewValidatorFromConfig(ctx, &cfg.Auth)
		if err != nil {
			return nil, err
		}
		a.validator = v
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(a.metrics),
	}
	switch cfg.Stats.Backend {
	case "memory":
		a.stats = ratelimit.NewMemoryStats(ratelimit.WithTrackKeys(cfg.Stats.TrackKeys))
		limiterOpts = append(limiterOpts, ratelimit.WithStats(a.stats))
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		limiterOpts = append(limiterOpts, ratelimit.WithStats(ratelimit.NewRedisStats(a.redis,
			ratelimit.WithStatsPrefix(cfg.Stats.Prefix),
			ratelimit.WithStatsTTL(cfg.Stats.TTL),
			ratelimit.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)))
	}
	a.limiter = ratelimit.NewFromConfig(&cfg.RateLimit, limiterOpts...)

	a.guard = idempotency.NewFromConfig(&cfg.Idempotency,
		idempotency.WithLogger(logger),
		idempotency.WithMetrics(a.metrics),
	)

	client, err := httpclient.NewFromConfig(&cfg.HTTPClient,
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(a.metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client

	if interval := *cfg.Sweep.Interval; interval > 0 {
		sweepOpts := []expiring.SweeperOption{
			expiring.WithSweeperLogger(logger),
			expiring.WithSweeperMetrics(a.metrics),
		}
		if a.limiter != nil {
			sweepOpts = append(sweepOpts, expiring.WithTarget("ratelimit", a.limiter))
		}
		if a.guard != nil {
			sweepOpts = append(sweepOpts, expiring.WithTarget("idempotency", a.guard))
		}
		a.sweeper = expiring.NewSweeper(interval, sweepOpts...)
	}

	return a, nil
}

// Close releases external connections and stops the meter provider.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.metrics.Shutdown(context.Background()))
	return errors.Join(errs...)
}

// Router mounts the middleware stack and the reference routes.
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(response.ErrorWriter{
		ExposeDetails: a.cfg.Server.ExposeErrorDetails,
		Logger:        a.logger,
	}.Middleware)
	if a.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(correlation.Middleware)
	r.Use(observability.Middleware(observability.WithMetrics(a.metrics)))

	r.Get("/healthz", a.health)
	if a.cfg.Metrics.IsEnabled() {
		r.Method(http.MethodGet, a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if a.validator != nil {
			r.Use(auth.Middleware(a.validator,
				auth.WithLogger(a.logger),
				auth.WithSkipPaths(a.cfg.Auth.ExcludedPaths...),
			))
		}
		r.Use(tenant.Resolver{Header: a.cfg.Tenant.Header}.Middleware(a.cfg.Tenant.Required))
		if a.limiter != nil {
			r.Use(a.limiter.Middleware)
		}
		if a.guard != nil {
			r.Use(a.guard.Middleware)
		}

		r.Post("/echo", a.echo)
		r.Get("/upstream/*", a.upstream)
		if a.stats != nil {
			r.Get("/stats", a.rateLimitStats)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apperror.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apperror.New(apperror.CodeValidation, http.StatusMethodNotAllowed, "method not allowed"))
	})

	return r
}

func (a *app) health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": GetVersion().Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// echo returns the JSON body with a fresh id, so replays are observable.
func (a *app) echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.cfg.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, r, apperror.Validation("request body too large").
				WithDetails(map[string]any{"limit_bytes": tooLarge.Limit}))
			return
		}
		response.Error(w, r, apperror.Validation("failed to read request body").WithCause(err))
		return
	}

	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			response.Error(w, r, apperror.Validation("request body must be valid JSON").WithCause(err))
			return
		}
	}

	out := map[string]any{
		"id":       uuid.NewString(),
		"received": payload,
	}
	if id, ok := correlation.FromContext(r.Context()); ok {
		out["correlation_id"] = id
	}
	if t, ok := tenant.FromRequest(r); ok {
		out["tenant"] = t
	}
	response.JSON(w, http.StatusCreated, out)
}

// upstream relays GET /v1/upstream/<path> to the configured base URL.
func (a *app) upstream(w http.ResponseWriter, r *http.Request) {
	if a.client.BaseURL() == "" {
		response.Error(w, r, apperror.Dependency("no upstream configured"))
		return
	}

	target := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	resp, err := a.client.Get(r.Context(), target, &httpclient.Options{
		Inbound: httpclient.InboundFromRequest(r),
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			response.JSON(w, statusErr.Status, statusErr.Data)
			return
		}
		if r.Context().Err() != nil {
			a.logger.Debug("Upstream call abandoned by client", "target", target)
			return
		}
		response.Error(w, r, err)
		return
	}
	response.JSON(w, resp.Status, resp.Data)
}

func (a *app) rateLimitStats(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, a.stats.Total())
}

// describe logs which components are active.
func (a *app) describe() {
	a.logger.Info("Middleware stack",
		"auth", a.validator != nil,
		"rate_limit", a.limiter != nil,
		"idempotency", a.guard != nil,
		"upstream", a.client.BaseURL(),
		"stats", a.cfg.Stats.Backend,
		"sweep_interval", fmt.Sprint(*a.cfg.Sweep.Interval),
	)
}
