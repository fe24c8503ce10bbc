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

package ratelimit

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/kegz/primeqa-common/pkg/apperror"
)

// DefaultMessage is returned to denied clients.
const DefaultMessage = "Too many requests, please try again later."

// ErrRateLimited is the cause of every denial error, so errors.Is matches
// denials and nothing else that shares the FORBIDDEN code.
var ErrRateLimited = errors.New("rate limit exceeded")

func deniedError(message string, retryAfter time.Duration) *apperror.Error {
	return apperror.New(apperror.CodeForbidden, http.StatusTooManyRequests, message).
		WithCause(ErrRateLimited).
		WithDetails(map[string]any{"retry_after_seconds": retryAfterSeconds(retryAfter)})
}

func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
