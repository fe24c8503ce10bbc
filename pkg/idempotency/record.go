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

package idempotency

import (
	"bytes"
	"net/http"
	"time"
)

// Record is a captured response.
type Record struct {
	Status    int
	Header    http.Header
	Body      []byte
	CreatedAt time.Time
	ExpiresAt time.Time

	// pending marks a key reserved by an in-flight request.
	pending bool
}

// Pending reports whether the record is an in-flight placeholder.
func (r Record) Pending() bool { return r.pending }

func (r Record) clone() Record {
	return Record{
		Status:    r.Status,
		Header:    r.Header.Clone(),
		Body:      bytes.Clone(r.Body),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
		pending:   r.pending,
	}
}

// bufferedWriter collects a whole response before it is emitted.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}
