package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.RateLimit.IsEnabled())
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10, *cfg.RateLimit.Max)
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, 10*time.Second, cfg.HTTPClient.Timeout)
	assert.Equal(t, 2, *cfg.HTTPClient.Retries)
	assert.Equal(t, time.Second, cfg.HTTPClient.RetryDelay)
	assert.False(t, cfg.Auth.IsEnabled())
	assert.Equal(t, "X-Tenant-Id", cfg.Tenant.Header)
	assert.Equal(t, time.Minute, *cfg.Sweep.Interval)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "none", cfg.Stats.Backend)
	assert.False(t, cfg.Server.TrustProxy)
	assert.False(t, cfg.Server.ExposeErrorDetails)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  trust_proxy: true
  expose_error_details: true
rate_limit:
  window: 30s
  max: 0
  key_header: X-Api-Key
idempotency:
  ttl: 2m
  scope: tenant
http_client:
  base_url: http://upstream.local
  retries: 5
  retry_delay: 250ms
sweep:
  interval: 0s
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.TrustProxy)
	assert.True(t, cfg.Server.ExposeErrorDetails)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 0, *cfg.RateLimit.Max, "explicit zero survives defaults")
	assert.Equal(t, "X-Api-Key", cfg.RateLimit.KeyHeader)
	assert.Equal(t, 2*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, "tenant", cfg.Idempotency.Scope)
	assert.Equal(t, "http://upstream.local", cfg.HTTPClient.BaseURL)
	assert.Equal(t, 5, *cfg.HTTPClient.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTPClient.RetryDelay)
	assert.Equal(t, time.Duration(0), *cfg.Sweep.Interval, "explicit zero disables the sweeper")
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, `{"server": {"port": 7000}, "log": {"format": "json"}}`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("PRIMEQA_TEST_PORT", "8181")
	t.Setenv("PRIMEQA_TEST_URL", "http://from-env")

	path := writeConfig(t, `
server:
  port: ${PRIMEQA_TEST_PORT}
http_client:
  base_url: $PRIMEQA_TEST_URL
auth:
  issuer: ${PRIMEQA_TEST_UNSET:-https://issuer.example}
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "http://from-env", cfg.HTTPClient.BaseURL)
	assert.Equal(t, "https://issuer.example", cfg.Auth.Issuer)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "rate_limit:\n  windw: 1m\n", "windw"},
		{"bad duration", "idempotency:\n  ttl: soon\n", "ttl"},
		{"bad port", "server:\n  port: 70000\n", "server: port"},
		{"bad scope", "idempotency:\n  scope: global\n", "idempotency: invalid scope"},
		{"auth without jwks", "auth:\n  enabled: true\n", "auth: jwks_url is required"},
		{"bad stats backend", "stats:\n  backend: etcd\n", "stats: invalid backend"},
		{"bad log level", "log:\n  level: loud\n", "log: invalid log level"},
		{"garbage", "::: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("PRIMEQA_A", "alpha")

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${PRIMEQA_A}", "alpha"},
		{"$PRIMEQA_A-suffix", "alpha-suffix"},
		{"${PRIMEQA_MISSING:-fallback}", "fallback"},
		{"${PRIMEQA_A:-fallback}", "alpha"},
		{"${PRIMEQA_MISSING}", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvString(tt.in), tt.in)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PRIMEQA_FROM_DOTENV=yes\n"), 0o644))
	t.Setenv("PRIMEQA_FROM_DOTENV", "")
	require.NoError(t, os.Unsetenv("PRIMEQA_FROM_DOTENV"))

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, ".env.local"), envFile))
	assert.Equal(t, "yes", os.Getenv("PRIMEQA_FROM_DOTENV"))
}

func TestSchema(t *testing.T) {
	raw, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"server", "rate_limit", "idempotency", "http_client", "auth", "tracing"} {
		assert.Contains(t, props, key)
	}
}
