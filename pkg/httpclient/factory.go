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
	"fmt"
	"net/http"

	"github.com/kegz/primeqa-common/pkg/config"
)

// NewFromConfig builds a client whose defaults come from cfg. opts are
// applied after the configured values.
func NewFromConfig(cfg *config.HTTPClientConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return New(opts...), nil
	}

	transport, err := ConfigureTLS(&TLSConfig{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CACertificate:      cfg.CACertificate,
	})
	if err != nil {
		return nil, fmt.Errorf("http_client: %w", err)
	}

	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Transport: transport}),
		WithDefaults(Options{
			Timeout:              cfg.Timeout,
			Retries:              cfg.Retries,
			RetryDelay:           cfg.RetryDelay,
			Headers:              headers,
			PropagateAuth:        cfg.PropagateAuth,
			PropagateCorrelation: cfg.PropagateCorrelation,
		}),
	}
	return New(append(base, opts...)...), nil
}
