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

// Package idempotency makes repeated POST requests carrying the same
// Idempotency-Key header observably execute once.
//
// The first request with a key runs normally. Its response (status, a small
// set of headers and the body) is captured as it is sent and kept for the
// TTL. Later requests with the same key get that response replayed byte for
// byte, marked with "Idempotent-Replayed: true", without reaching the handler.
//
// Requests that are not POST, or that carry no key, pass straight through.
// Keys are trimmed, so "abc" and "  abc  " are the same key.
//
// # Concurrent duplicates
//
// By default a duplicate that arrives while the first request is still
// running also executes. The first response to complete is stored and is
// never overwritten by a later one before it expires. WithInFlightConflict
// instead reserves the key before the handler runs so such duplicates are
// rejected with 409 CONFLICT.
//
// Records live in process memory and are lost on restart.
package idempotency
