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
	"context"
	"net/http"
)

func withBody(opts *Options, body any) *Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if body != nil {
		o.Body = body
	}
	return &o
}

func (c *Client) Get(ctx context.Context, url string, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts)
}

func (c *Client) Head(ctx context.Context, url string, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodHead, url, opts)
}

func (c *Client) Options(ctx context.Context, url string, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodOptions, url, opts)
}

func (c *Client) Post(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, withBody(opts, body))
}

func (c *Client) Put(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodPut, url, withBody(opts, body))
}

func (c *Client) Patch(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, url, withBody(opts, body))
}

func (c *Client) Delete(ctx context.Context, url string, opts *Options) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, url, opts)
}

var defaultClient = New()

// Request performs a call with the library defaults.
func Request(ctx context.Context, method, url string, opts *Options) (*Response, error) {
	return defaultClient.Request(ctx, method, url, opts)
}

func Get(ctx context.Context, url string, opts *Options) (*Response, error) {
	return defaultClient.Get(ctx, url, opts)
}

func Post(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return defaultClient.Post(ctx, url, body, opts)
}

func Put(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return defaultClient.Put(ctx, url, body, opts)
}

func Patch(ctx context.Context, url string, body any, opts *Options) (*Response, error) {
	return defaultClient.Patch(ctx, url, body, opts)
}

func Delete(ctx context.Context, url string, opts *Options) (*Response, error) {
	return defaultClient.Delete(ctx, url, opts)
}
