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

package config

import (
	"fmt"
	"net/url"
	"time"
)

// IdempotencyConfig configures replay of mutating requests.
type IdempotencyConfig struct {
	// Enabled controls whether the guard is mounted.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// TTL is how long a captured response is replayable.
	// Default: 5m
	TTL time.Duration `yaml:"ttl,omitempty"`

	// Scope namespaces keys: "none" (default) or "tenant".
	Scope string `yaml:"scope,omitempty"`

	// InFlightConflict rejects a duplicate that arrives while the first
	// request with the same key is still running.
	InFlightConflict bool `yaml:"in_flight_conflict,omitempty"`
}

// IsEnabled returns true if the idempotency guard is enabled.
func (c *IdempotencyConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults applies default values to IdempotencyConfig.
func (c *IdempotencyConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Scope == "" {
		c.Scope = "none"
	}
}

// Validate checks the IdempotencyConfig for errors.
func (c *IdempotencyConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if c.Scope != "none" && c.Scope != "tenant" {
		return fmt.Errorf("invalid scope %q (valid: none, tenant)", c.Scope)
	}
	return nil
}

// HTTPClientConfig holds the outbound client defaults.
type HTTPClientConfig struct {
	// BaseURL resolves relative request URLs.
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout per attempt. Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries after the first attempt. Default: 2
	Retries *int `yaml:"retries,omitempty"`

	// RetryDelay is the linear backoff unit. Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`

	// Headers are sent on every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	PropagateAuth        *bool `yaml:"propagate_auth,omitempty"`
	PropagateCorrelation *bool `yaml:"propagate_correlation,omitempty"`

	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	CACertificate      string `yaml:"ca_certificate,omitempty"`
}

// SetDefaults applies default values to HTTPClientConfig.
func (c *HTTPClientConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retries == nil {
		c.Retries = IntPtr(2)
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.PropagateAuth == nil {
		c.PropagateAuth = BoolPtr(true)
	}
	if c.PropagateCorrelation == nil {
		c.PropagateCorrelation = BoolPtr(true)
	}
}

// Validate checks the HTTPClientConfig for errors.
func (c *HTTPClientConfig) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base_url %q", c.BaseURL)
		}
	}
	if c.Timeout < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("timeout and retry_delay must not be negative")
	}
	return nil
}

// TenantConfig configures tenant resolution.
type TenantConfig struct {
	// Header carrying the tenant when the token has none.
	// Default: X-Tenant-Id
	Header string `yaml:"header,omitempty"`

	// Required rejects requests without a tenant.
	Required bool `yaml:"required,omitempty"`
}

// SetDefaults applies default values to TenantConfig.
func (c *TenantConfig) SetDefaults() {
	if c.Header == "" {
		c.Header = "X-Tenant-Id"
	}
}

// Validate checks the TenantConfig for errors.
func (c *TenantConfig) Validate() error {
	return nil
}

// SweepConfig configures background eviction of expired entries.
type SweepConfig struct {
	// Interval between sweeps. Zero disables the sweeper.
	// Default: 1m
	Interval *time.Duration `yaml:"interval,omitempty"`
}

// SetDefaults applies default values to SweepConfig.
func (c *SweepConfig) SetDefaults() {
	if c.Interval == nil {
		d := time.Minute
		c.Interval = &d
	}
}

// Validate checks the SweepConfig for errors.
func (c *SweepConfig) Validate() error {
	if c.Interval != nil && *c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint. Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Path of the endpoint. Default: /metrics
	Path string `yaml:"path,omitempty"`
}

// IsEnabled returns true if metrics are exposed.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults applies default values to MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Validate checks the MetricsConfig for errors.
func (c *MetricsConfig) Validate() error {
	if c.IsEnabled() && (c.Path == "" || c.Path[0] != '/') {
		return fmt.Errorf("path must start with '/', got %q", c.Path)
	}
	return nil
}

// StatsConfig selects where rate limit decisions are aggregated.
//
//	stats:
//	  backend: redis
//	  redis_addr: localhost:6379
type StatsConfig struct {
	// Backend is "none" (default), "memory" or "redis".
	Backend string `yaml:"backend,omitempty"`

	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`

	// Prefix for redis keys. Default: primeqa:ratelimit
	Prefix string `yaml:"prefix,omitempty"`

	// TTL of the redis hashes. Default: 24h
	TTL time.Duration `yaml:"ttl,omitempty"`

	// TrackKeys also counts per-client keys.
	TrackKeys bool `yaml:"track_keys,omitempty"`
}

// SetDefaults applies default values to StatsConfig.
func (c *StatsConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.Backend == "redis" && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = "primeqa:ratelimit"
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
}

// Validate checks the StatsConfig for errors.
func (c *StatsConfig) Validate() error {
	switch c.Backend {
	case "none", "memory":
		return nil
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
		return nil
	default:
		return fmt.Errorf("invalid backend %q (valid: none, memory, redis)", c.Backend)
	}
}
