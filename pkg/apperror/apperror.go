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

// Package apperror defines the stable error taxonomy shared by every
// middleware and client in this module.
//
// An Error carries a Code from a fixed enumeration, an HTTP-equivalent
// status, a human message that is safe to show to end users and optional
// structured details. The underlying cause is kept for logs and errors.Is/As
// but never leaks into Message.
package apperror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Error is the classified error type.
type Error struct {
	// Code is the error kind.
	Code Code

	// Status is the HTTP-equivalent status code.
	Status int

	// Message is a human-readable message, safe for end users.
	Message string

	// Details is optional structured context (e.g. url, status, originalError).
	// Callers decide whether to expose it.
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is comparisons. Matching is by Code only.
var (
	ErrValidation   = &Error{Code: CodeValidation, Status: http.StatusBadRequest}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized}
	ErrForbidden    = &Error{Code: CodeForbidden, Status: http.StatusForbidden}
	ErrNotFound     = &Error{Code: CodeNotFound, Status: http.StatusNotFound}
	ErrConflict     = &Error{Code: CodeConflict, Status: http.StatusConflict}
	ErrInternal     = &Error{Code: CodeInternal, Status: http.StatusInternalServerError}
)

// StatusCoder is implemented by errors that carry a raw HTTP status, such as
// the outbound client's non-dependency failures.
type StatusCoder interface {
	StatusCode() int
}

// New creates an Error.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func Validation(message string) *Error {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, http.StatusConflict, message)
}

func Internal(message string) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// Dependency reports a failure attributed to a called service or the network.
// It is an INTERNAL_ERROR with status 503.
func Dependency(message string) *Error {
	return New(CodeInternal, http.StatusServiceUnavailable, message)
}

// Error returns the message and cause. Details are never included.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// StatusCode returns the HTTP-equivalent status.
func (e *Error) StatusCode() int {
	if e == nil || e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// WithDetails returns a copy of e with details merged over any existing ones.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	cp.Details = merged
	return &cp
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// CodeForStatus maps an HTTP status to the closest Code.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	}
	if status >= 400 && status < 500 {
		return CodeValidation
	}
	return CodeInternal
}

// From classifies any error.
//
// An *Error in the chain is returned as is. An error exposing StatusCode keeps
// its status. Anything else becomes a generic INTERNAL_ERROR whose message does
// not contain the raw error text.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		return &Error{
			Code:    CodeForStatus(status),
			Status:  status,
			Message: http.StatusText(status),
			Err:     err,
		}
	}

	return Internal("internal server error").WithCause(err)
}

// IsDependency reports whether err is a classified dependency failure.
func IsDependency(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == CodeInternal && ae.Status == http.StatusServiceUnavailable
}
