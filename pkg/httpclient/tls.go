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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

// TLSConfig holds outbound TLS settings.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // dev/test only
	CACertificate      string `yaml:"ca_certificate"`       // path to a PEM bundle
}

// ConfigureTLS clones the default transport and applies cfg. A CA bundle
// replaces the system roots.
func ConfigureTLS(cfg *TLSConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg == nil {
		return transport, nil
	}

	if cfg.CACertificate != "" {
		caCert, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", cfg.CACertificate, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	transport.TLSClientConfig.InsecureSkipVerify = cfg.InsecureSkipVerify
	return transport, nil
}

// WithTLSConfig installs a transport built by ConfigureTLS. On error the
// default transport is kept and a warning is logged.
func WithTLSConfig(cfg *TLSConfig) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport, err := ConfigureTLS(cfg)
		if err != nil {
			slog.Warn("failed to configure outbound TLS", "error", err)
			return
		}
		if c.client == nil {
			c.client = &http.Client{}
		}
		c.client.Transport = transport
	}
}
