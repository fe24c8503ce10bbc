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

// Package expiring provides a generic in-memory keyed store whose entries
// carry an absolute expiry.
//
// Expired entries are never returned. They are removed lazily when read, or
// in bulk by Sweep, which a Sweeper can drive on an interval. There is no
// background eviction unless the host starts one.
package expiring

import (
	"sync"
	"time"

	"github.com/kegz/primeqa-common/pkg/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store maps string keys to values with an expiry. It is safe for concurrent use.
type Store[V any] struct {
	mu    sync.Mutex
	data  map[string]entry[V]
	clock clock.Clock
}

// Option configures a Store.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock sets the time source used for lazy eviction.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates an empty store.
func New[V any](opts ...Option) *Store[V] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Store[V]{
		data:  make(map[string]entry[V]),
		clock: clock.OrSystem(o.clock),
	}
}

// Get returns the value for key if it has not expired.
// An expired entry is deleted and reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key, s.clock.Now())
	return e.value, ok
}

// Set inserts or overwrites key. expiresAt may be earlier or later than any
// previous value.
func (s *Store[V]) Set(key string, value V, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry[V]{value: value, expiresAt: expiresAt}
}

// UpdateFunc receives the current value (ok is false when missing or expired)
// and returns the next value, its expiry, and whether to keep the key at all.
type UpdateFunc[V any] func(current V, ok bool) (next V, expiresAt time.Time, keep bool)

// Update performs an atomic read-modify-write of key and returns the value
// fn produced. No other operation on the store interleaves with fn, so fn
// must not call back into the store.
func (s *Store[V]) Update(key string, fn UpdateFunc[V]) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lookup(key, s.clock.Now())
	next, expiresAt, keep := fn(cur.value, ok)
	if keep {
		s.data[key] = entry[V]{value: next, expiresAt: expiresAt}
	} else {
		delete(s.data, key)
	}
	return next
}

// Delete removes key.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

// Sweep deletes every entry with expiresAt <= now and returns how many were removed.
func (s *Store[V]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.data {
		if !e.expiresAt.After(now) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// lookup must be called with mu held.
func (s *Store[V]) lookup(key string, now time.Time) (entry[V], bool) {
	e, ok := s.data[key]
	if !ok {
		return entry[V]{}, false
	}
	if !e.expiresAt.After(now) {
		delete(s.data, key)
		return entry[V]{}, false
	}
	return e, true
}
