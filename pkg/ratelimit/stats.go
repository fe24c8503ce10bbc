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
	"context"
	"sync"
	"time"
)

// StatsEvent describes one decision.
type StatsEvent struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// Stats receives decisions. Recording is best effort: errors are logged and
// never change the decision.
type Stats interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters is a pair of allow/deny totals.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

// MemoryStats keeps totals in memory. It never expires anything and is meant
// for tests and single-instance diagnostics.
type MemoryStats struct {
	mu        sync.Mutex
	total     Counters
	byRoute   map[string]Counters
	byKey     map[string]Counters
	trackKeys bool
}

// MemoryStatsOption configures MemoryStats.
type MemoryStatsOption func(*MemoryStats)

// WithTrackKeys keeps per-key totals as well.
func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStats) { s.trackKeys = track }
}

// NewMemoryStats creates an empty MemoryStats.
func NewMemoryStats(opts ...MemoryStatsOption) *MemoryStats {
	s := &MemoryStats{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	route := ev.Method + " " + ev.Path
	rc := s.byRoute[route]
	rc.add(ev.Allowed)
	s.byRoute[route] = rc

	if s.trackKeys {
		kc := s.byKey[ev.Key]
		kc.add(ev.Allowed)
		s.byKey[ev.Key] = kc
	}
	return nil
}

// Total returns the overall totals.
func (s *MemoryStats) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Route returns totals for "METHOD /path".
func (s *MemoryStats) Route(route string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byRoute[route]
}

// Key returns totals for key. Always zero unless keys are tracked.
func (s *MemoryStats) Key(key string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[key]
}
