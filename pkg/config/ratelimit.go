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
	"time"
)

// RateLimitConfig configures the fixed-window request limiter.
//
// Example:
//
//	rate_limit:
//	  enabled: true
//	  window: 1m
//	  max: 100
//	  key_header: X-Api-Key
//	  per_tenant: true
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Window is the length of one counting window.
	// Default: 60s
	Window time.Duration `yaml:"window,omitempty"`

	// Max is the number of requests allowed per window. Zero denies all.
	// Default: 10
	Max *int `yaml:"max,omitempty"`

	// Message is returned to rejected callers.
	Message string `yaml:"message,omitempty"`

	// KeyHeader identifies callers by a header instead of the client address.
	KeyHeader string `yaml:"key_header,omitempty"`

	// PerTenant prefixes keys with the resolved tenant.
	PerTenant bool `yaml:"per_tenant,omitempty"`
}

// IsEnabled returns true if rate limiting is enabled.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults sets default values for RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Window == 0 {
		c.Window = 60 * time.Second
	}
	if c.Max == nil {
		c.Max = IntPtr(10)
	}
}

// Validate validates the RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative")
	}
	if c.Max != nil && *c.Max < 0 {
		return fmt.Errorf("max must not be negative, got %d", *c.Max)
	}
	return nil
}
