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

package auth

import (
	"github.com/kegz/primeqa-common/pkg/apperror"
)

// Authentication errors. They match by code with errors.Is.
var (
	// ErrUnauthorized is returned when authentication is required but not provided.
	ErrUnauthorized = apperror.Unauthorized("authentication required")

	// ErrInvalidToken is returned when a token cannot be validated.
	ErrInvalidToken = apperror.Unauthorized("invalid token")

	// ErrForbidden is returned when the user lacks permission.
	ErrForbidden = apperror.Forbidden("insufficient permissions")
)
