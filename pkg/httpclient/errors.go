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
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/kegz/primeqa-common/pkg/apperror"
)

// StatusError is a non-2xx response below 500. It is returned untouched so
// callers see the original status and body.
type StatusError struct {
	Method  string
	URL     string
	Status  int
	Headers http.Header
	Body    []byte
	Data    any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
}

// StatusCode implements apperror.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

// errorClass names transport failures attributed to the dependency.
type errorClass string

const (
	classNone              errorClass = ""
	classConnectionRefused errorClass = "connection_refused"
	classHostNotFound      errorClass = "host_not_found"
	classTimeout           errorClass = "timeout"
)

func classify(err error) errorClass {
	if err == nil {
		return classNone
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return classConnectionRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return classHostNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTimeout
	}
	return classNone
}

func retryableMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func retryableStatus(status int) bool {
	return status >= 500 && status != http.StatusNotImplemented
}

func dependencyStatusError(url string, status, attempts int) *apperror.Error {
	return apperror.Dependency(fmt.Sprintf("dependency request failed after %d attempt(s)", attempts)).
		WithDetails(map[string]any{
			"url":      url,
			"status":   status,
			"attempts": attempts,
		})
}

func dependencyTransportError(url string, err error, attempts int) *apperror.Error {
	return apperror.Dependency(fmt.Sprintf("dependency unreachable after %d attempt(s)", attempts)).
		WithDetails(map[string]any{
			"url":           url,
			"originalError": err.Error(),
			"attempts":      attempts,
		}).
		WithCause(err)
}
