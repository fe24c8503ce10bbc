package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kegz/primeqa-common/pkg/auth"
	"github.com/kegz/primeqa-common/pkg/config"
	"github.com/kegz/primeqa-common/pkg/correlation"
	"github.com/kegz/primeqa-common/pkg/idempotency"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	if mutate != nil {
		mutate(cfg)
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func testApp(t *testing.T, cfg *config.Config, opts ...appOption) http.Handler {
	t.Helper()
	a, err := newApp(context.Background(), cfg, quiet, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a.Router()
}

func do(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		r.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	h := testApp(t, testConfig(t, nil))

	rec := do(h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(correlation.Header))
}

func TestRouter_EchoIsIdempotent(t *testing.T) {
	h := testApp(t, testConfig(t, nil))
	hdr := http.Header{idempotency.HeaderKey: {"order-1"}, "Content-Type": {"application/json"}}

	first := do(h, http.MethodPost, "/v1/echo", `{"n":1}`, hdr)
	second := do(h, http.MethodPost, "/v1/echo", `{"n":1}`, hdr)
	fresh := do(h, http.MethodPost, "/v1/echo", `{"n":1}`, nil)

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderReplayed))
	assert.NotEqual(t, decode(t, first)["id"], decode(t, fresh)["id"])
}

func TestRouter_EchoRejectsInvalidJSON(t *testing.T) {
	h := testApp(t, testConfig(t, nil))

	rec := do(h, http.MethodPost, "/v1/echo", `{nope`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["error"].(map[string]any)["code"])
}

func TestRouter_RateLimit(t *testing.T) {
	h := testApp(t, testConfig(t, func(c *config.Config) {
		c.RateLimit.Max = config.IntPtr(2)
		c.Stats.Backend = "memory"
	}))

	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodPost, "/v1/echo", `{}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := do(h, http.MethodPost, "/v1/echo", `{}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// The stats route is itself limited, so read them from a fresh client address.
	r := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	r.RemoteAddr = "198.51.100.7:4000"
	stats := httptest.NewRecorder()
	h.ServeHTTP(stats, r)
	require.Equal(t, http.StatusOK, stats.Code)
	got := decode(t, stats)
	assert.Equal(t, float64(3), got["allowed"])
	assert.Equal(t, float64(1), got["denied"])
}

func TestRouter_TenantRequired(t *testing.T) {
	h := testApp(t, testConfig(t, func(c *config.Config) {
		c.Tenant.Required = true
	}))

	rec := do(h, http.MethodPost, "/v1/echo", `{}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodPost, "/v1/echo", `{}`, http.Header{"X-Tenant-Id": {"acme"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acme", decode(t, rec)["tenant"])
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Subject: "user-1", TenantID: "acme"}, nil
}

func TestRouter_Auth(t *testing.T) {
	h := testApp(t, testConfig(t, nil), withValidator(fakeValidator{}))

	rec := do(h, http.MethodPost, "/v1/echo", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/v1/echo", `{}`, http.Header{"Authorization": {"Bearer good"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acme", decode(t, rec)["tenant"], "tenant comes from the token")

	rec = do(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is outside /v1")
}

func TestRouter_Upstream(t *testing.T) {
	var (
		mu               sync.Mutex
		gotAuth, gotPath string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"gone"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[1,2]}`))
	}))
	defer upstream.Close()

	h := testApp(t, testConfig(t, func(c *config.Config) {
		c.HTTPClient.BaseURL = upstream.URL
		c.HTTPClient.Retries = config.IntPtr(0)
	}))

	rec := do(h, http.MethodGet, "/v1/upstream/items?page=2", "", http.Header{"Authorization": {"Bearer abc"}})
	require.Equal(t, http.StatusOK, rec.Code)
	mu.Lock()
	assert.Equal(t, "/items?page=2", gotPath)
	assert.Equal(t, "Bearer abc", gotAuth)
	mu.Unlock()
	assert.Equal(t, []any{float64(1), float64(2)}, decode(t, rec)["items"])

	rec = do(h, http.MethodGet, "/v1/upstream/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "gone", decode(t, rec)["error"])
}

func TestRouter_UpstreamUnavailable(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := testApp(t, testConfig(t, nil))
		rec := do(h, http.MethodGet, "/v1/upstream/x", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unreachable", func(t *testing.T) {
		h := testApp(t, testConfig(t, func(c *config.Config) {
			c.HTTPClient.BaseURL = "http://127.0.0.1:1"
			c.HTTPClient.Retries = config.IntPtr(0)
			c.HTTPClient.Timeout = time.Second
		}))
		rec := do(h, http.MethodGet, "/v1/upstream/x", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decode(t, rec)["error"].(map[string]any)["code"])
	})
}

func TestRouter_MetricsAndNotFound(t *testing.T) {
	h := testApp(t, testConfig(t, nil))

	do(h, http.MethodPost, "/v1/echo", `{}`, nil)
	rec := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "primeqa_ratelimit_decisions_total")
	assert.Contains(t, rec.Body.String(), "primeqa_http_requests_total")

	rec = do(h, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["error"].(map[string]any)["code"])
}

func TestNewApp_Sweeper(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t, nil), quiet)
	require.NoError(t, err)
	require.NotNil(t, a.sweeper)
	assert.Equal(t, time.Minute, a.sweeper.Interval())

	zero := time.Duration(0)
	a, err = newApp(context.Background(), testConfig(t, func(c *config.Config) {
		c.Sweep.Interval = &zero
	}), quiet)
	require.NoError(t, err)
	assert.Nil(t, a.sweeper)
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestRouter_ForwardedHeadersNeedTrustProxy(t *testing.T) {
	limited := func(trust bool) func(*config.Config) {
		return func(c *config.Config) {
			c.RateLimit.Max = config.IntPtr(2)
			c.Server.TrustProxy = trust
		}
	}
	spoofed := func(i int) http.Header {
		return http.Header{"X-Forwarded-For": {"203.0.113." + strconv.Itoa(i+1)}}
	}

	t.Run("untrusted", func(t *testing.T) {
		h := testApp(t, testConfig(t, limited(false)))
		denied := 0
		for i := 0; i < 5; i++ {
			if do(h, http.MethodPost, "/v1/echo", `{}`, spoofed(i)).Code == http.StatusTooManyRequests {
				denied++
			}
		}
		assert.Equal(t, 3, denied, "rotating X-Forwarded-For must not pick a new key")
	})

	t.Run("trusted", func(t *testing.T) {
		h := testApp(t, testConfig(t, limited(true)))
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/v1/echo", `{}`, spoofed(i)).Code)
		}
	})
}

func TestRouter_ErrorDetails(t *testing.T) {
	unreachable := func(expose bool) func(*config.Config) {
		return func(c *config.Config) {
			c.HTTPClient.BaseURL = "http://127.0.0.1:1"
			c.HTTPClient.Retries = config.IntPtr(0)
			c.HTTPClient.Timeout = time.Second
			c.Server.ExposeErrorDetails = expose
		}
	}

	rec := do(testApp(t, testConfig(t, unreachable(false))), http.MethodGet, "/v1/upstream/x", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "127.0.0.1")
	assert.NotContains(t, rec.Body.String(), "originalError")

	rec = do(testApp(t, testConfig(t, unreachable(true))), http.MethodGet, "/v1/upstream/x", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "originalError")
}
