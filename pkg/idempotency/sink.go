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
	"net/http"
	"sync"
	"time"
)

// Sink emits a complete response.
type Sink interface {
	Send(status int, header http.Header, body []byte) error
}

// PassThroughSink writes straight to the client.
type PassThroughSink struct {
	W http.ResponseWriter
}

func (s PassThroughSink) Send(status int, header http.Header, body []byte) error {
	return writeResponse(s.W, status, header, body)
}

// CapturingSink writes to the client and stores the response under its key.
// Only the first Send has any effect.
type CapturingSink struct {
	guard *Guard
	key   string
	dest  http.ResponseWriter

	mu   sync.Mutex
	sent bool
}

// Key returns the store key the response will be recorded under.
func (s *CapturingSink) Key() string { return s.key }

func (s *CapturingSink) Send(status int, header http.Header, body []byte) error {
	s.mu.Lock()
	if s.sent {
		s.mu.Unlock()
		return nil
	}
	s.sent = true
	s.mu.Unlock()

	s.guard.store(s.key, status, header, body)
	return writeResponse(s.dest, status, header, body)
}

// Abort releases an in-flight reservation when nothing was sent, so a retry
// can run. It is a no-op after Send.
func (s *CapturingSink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent {
		return
	}
	s.sent = true
	s.guard.release(s.key)
}

func writeResponse(w http.ResponseWriter, status int, header http.Header, body []byte) error {
	dst := w.Header()
	for k, v := range header {
		dst[k] = append([]string(nil), v...)
	}
	w.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

func (g *Guard) store(key string, status int, header http.Header, body []byte) {
	now := g.clock.Now()
	rec := Record{
		Status:    status,
		Header:    g.replayable(header),
		Body:      append([]byte(nil), body...),
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.records.Update(key, func(cur Record, ok bool) (Record, time.Time, bool) {
		if ok && !cur.pending {
			g.logger.Debug("idempotency record already stored", "key", key)
			return cur, cur.ExpiresAt, true
		}
		return rec, rec.ExpiresAt, true
	})
}

func (g *Guard) release(key string) {
	g.records.Update(key, func(cur Record, ok bool) (Record, time.Time, bool) {
		if ok && !cur.pending {
			return cur, cur.ExpiresAt, true
		}
		return Record{}, time.Time{}, false
	})
}
