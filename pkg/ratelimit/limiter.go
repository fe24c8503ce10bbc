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
	"log/slog"
	"net/http"
	"time"

	"github.com/kegz/primeqa-common/pkg/clock"
	"github.com/kegz/primeqa-common/pkg/expiring"
	"github.com/kegz/primeqa-common/pkg/metrics"
)

// Defaults.
const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 10
)

// Counter is the per-key window state.
type Counter struct {
	Count           int
	WindowExpiresAt time.Time
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Key       string
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter is how long until the window resets. Zero when allowed.
	RetryAfter time.Duration

	message string
}

// Err returns nil for an allowed decision and the 429 error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	msg := d.message
	if msg == "" {
		msg = DefaultMessage
	}
	return deniedError(msg, d.RetryAfter)
}

// Limiter is a fixed-window rate limiter. It is safe for concurrent use.
type Limiter struct {
	window  time.Duration
	max     int
	keyFunc KeyFunc
	message string
	store   *expiring.Store[Counter]
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	stats   Stats
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow sets the window length. Zero or negative means every request
// opens a fresh window.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithMax sets the number of requests allowed per window. Zero or negative
// denies all requests.
func WithMax(n int) Option {
	return func(l *Limiter) { l.max = n }
}

// WithKeyFunc sets how requests map to counters.
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.keyFunc = fn
		}
	}
}

// WithMessage sets the message returned to denied clients.
func WithMessage(msg string) Option {
	return func(l *Limiter) {
		if msg != "" {
			l.message = msg
		}
	}
}

// WithStore injects a counter store, e.g. one shared by several routes.
// The store's own clock drives lazy eviction.
func WithStore(s *expiring.Store[Counter]) Option {
	return func(l *Limiter) { l.store = s }
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithMetrics records decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithStats sends every decision to s.
func WithStats(s Stats) Option {
	return func(l *Limiter) { l.stats = s }
}

// New creates a limiter with its own store unless WithStore is given.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		window:  DefaultWindow,
		max:     DefaultMax,
		keyFunc: DefaultKeyFunc,
		message: DefaultMessage,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.clock = clock.OrSystem(l.clock)
	if l.store == nil {
		l.store = expiring.New[Counter](expiring.WithClock(l.clock))
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Window returns the configured window.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the configured per-window limit.
func (l *Limiter) Max() int { return l.max }

// Check counts r against its key and decides. An error from the key
// function is returned unchanged.
func (l *Limiter) Check(r *http.Request) (Decision, error) {
	key, err := l.keyFunc(r)
	if err != nil {
		return Decision{}, err
	}

	d := l.Take(key)
	l.metrics.RecordRateLimit(d.Allowed)
	l.record(r.Context(), StatsEvent{
		Key:     key,
		Allowed: d.Allowed,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      l.clock.Now(),
	})
	return d, nil
}

// Take counts one request against key.
func (l *Limiter) Take(key string) Decision {
	now := l.clock.Now()
	allowed := false

	c := l.store.Update(key, func(cur Counter, ok bool) (Counter, time.Time, bool) {
		if !ok {
			if l.max <= 0 {
				return Counter{}, time.Time{}, false
			}
			allowed = true
			next := Counter{Count: 1, WindowExpiresAt: now.Add(l.window)}
			return next, next.WindowExpiresAt, l.window > 0
		}
		if cur.Count < l.max {
			cur.Count++
			allowed = true
		}
		return cur, cur.WindowExpiresAt, true
	})

	d := Decision{
		Allowed: allowed,
		Key:     key,
		Count:   c.Count,
		Limit:   l.max,
		ResetAt: c.WindowExpiresAt,
		message: l.message,
	}
	if d.ResetAt.IsZero() {
		d.ResetAt = now.Add(l.window)
	}
	if rem := l.max - c.Count; rem > 0 {
		d.Remaining = rem
	}
	if !allowed {
		d.RetryAfter = max(d.ResetAt.Sub(now), 0)
	}
	return d
}

// Reset forgets the counter for key.
func (l *Limiter) Reset(key string) {
	l.store.Delete(key)
}

// Cleanup removes counters whose window ended at or before now.
func (l *Limiter) Cleanup(now time.Time) int {
	return l.store.Sweep(now)
}

// Sweep implements expiring.Sweepable.
func (l *Limiter) Sweep(now time.Time) int {
	return l.Cleanup(now)
}

func (l *Limiter) record(ctx context.Context, ev StatsEvent) {
	if l.stats == nil {
		return
	}
	if err := l.stats.Record(ctx, ev); err != nil {
		l.logger.Warn("rate limit stats record failed", "key", ev.Key, "error", err)
	}
}
