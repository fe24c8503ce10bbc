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

// Package config loads the YAML configuration shared by primeqa services.
//
// Example:
//
//	server:
//	  port: 8080
//	log:
//	  level: info
//	rate_limit:
//	  enabled: true
//	  window: 1m
//	  max: 100
//	idempotency:
//	  ttl: 5m
//	http_client:
//	  base_url: ${UPSTREAM_URL:-http://localhost:9000}
//	  retries: 2
//
// Values may reference environment variables as ${VAR}, ${VAR:-default} or
// $VAR. Durations are Go duration strings ("500ms", "1m").
package config

import (
	"fmt"

	"github.com/kegz/primeqa-common/pkg/observability"
)

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig                `yaml:"server,omitempty"`
	Log         LoggerConfig                `yaml:"log,omitempty"`
	RateLimit   RateLimitConfig             `yaml:"rate_limit,omitempty"`
	Idempotency IdempotencyConfig           `yaml:"idempotency,omitempty"`
	HTTPClient  HTTPClientConfig            `yaml:"http_client,omitempty"`
	Auth        AuthConfig                  `yaml:"auth,omitempty"`
	Tenant      TenantConfig                `yaml:"tenant,omitempty"`
	Sweep       SweepConfig                 `yaml:"sweep,omitempty"`
	Metrics     MetricsConfig               `yaml:"metrics,omitempty"`
	Tracing     observability.TracingConfig `yaml:"tracing,omitempty"`
	Stats       StatsConfig                 `yaml:"stats,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Log.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Idempotency.SetDefaults()
	c.HTTPClient.SetDefaults()
	c.Auth.SetDefaults()
	c.Tenant.SetDefaults()
	c.Sweep.SetDefaults()
	c.Metrics.SetDefaults()
	c.Tracing.SetDefaults()
	c.Stats.SetDefaults()
}

// Validate checks every section and returns the first error.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"log", c.Log.Validate},
		{"rate_limit", c.RateLimit.Validate},
		{"idempotency", c.Idempotency.Validate},
		{"http_client", c.HTTPClient.Validate},
		{"auth", c.Auth.Validate},
		{"tenant", c.Tenant.Validate},
		{"sweep", c.Sweep.Validate},
		{"metrics", c.Metrics.Validate},
		{"tracing", c.Tracing.Validate},
		{"stats", c.Stats.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}
