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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/clock"
	"github.com/kegz/primeqa-common/pkg/expiring"
	"github.com/kegz/primeqa-common/pkg/metrics"
)

const (
	// HeaderKey is the request header carrying the client's key.
	HeaderKey = "Idempotency-Key"

	// HeaderReplayed is set on replayed responses.
	HeaderReplayed = "Idempotent-Replayed"

	// DefaultTTL is how long a captured response is replayed.
	DefaultTTL = 5 * time.Minute
)

// DefaultReplayHeaders are the response headers kept with a record.
var DefaultReplayHeaders = []string{"Content-Type", "Location"}

// ErrInFlight is returned for a duplicate of a request still being processed.
var ErrInFlight = apperror.Conflict("a request with this idempotency key is already in progress")

// Outcome is what Intercept decided.
type Outcome int

const (
	// PassThrough means the guard does not apply to the request.
	PassThrough Outcome = iota
	// Captured means the handler should run and emit through the returned sink.
	Captured
	// Replayed means a stored response was written and the handler must not run.
	Replayed
)

func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case Replayed:
		return "replayed"
	default:
		return "pass_through"
	}
}

// Guard memoizes POST responses by idempotency key. It is safe for concurrent use.
type Guard struct {
	ttl           time.Duration
	records       *expiring.Store[Record]
	clock         clock.Clock
	replayHeaders []string
	scope         func(*http.Request) string
	inFlight      bool
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL sets how long records are kept.
func WithTTL(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithStore injects the record store.
func WithStore(s *expiring.Store[Record]) Option {
	return func(g *Guard) { g.records = s }
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) { g.clock = c }
}

// WithReplayHeaders replaces the set of response headers stored and replayed.
func WithReplayHeaders(names ...string) Option {
	return func(g *Guard) {
		g.replayHeaders = make([]string, 0, len(names))
		for _, n := range names {
			g.replayHeaders = append(g.replayHeaders, http.CanonicalHeaderKey(n))
		}
	}
}

// WithScope prefixes keys with fn(r), e.g. the tenant, so identical keys from
// different scopes never collide.
func WithScope(fn func(*http.Request) string) Option {
	return func(g *Guard) { g.scope = fn }
}

// WithInFlightConflict reserves a key before the handler runs. A duplicate
// arriving before the first completes gets ErrInFlight.
func WithInFlightConflict() Option {
	return func(g *Guard) { g.inFlight = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithMetrics records outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// New creates a guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		ttl:           DefaultTTL,
		replayHeaders: DefaultReplayHeaders,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.clock = clock.OrSystem(g.clock)
	if g.records == nil {
		g.records = expiring.New[Record](expiring.WithClock(g.clock))
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// TTL returns the record lifetime.
func (g *Guard) TTL() time.Duration { return g.ttl }

// Intercept decides how to handle r.
//
// For PassThrough the returned sink writes directly to w. For Captured the
// caller runs its handler and emits the complete response through the sink
// once. For Replayed the stored response has already been written to w and
// the sink is nil.
func (g *Guard) Intercept(r *http.Request, w http.ResponseWriter) (Outcome, Sink, error) {
	if r.Method != http.MethodPost {
		return g.passThrough(w)
	}

	key := strings.TrimSpace(r.Header.Get(HeaderKey))
	if key == "" {
		return g.passThrough(w)
	}
	key = g.scopedKey(r, key)

	rec, found, err := g.lookupOrReserve(key)
	if err != nil {
		g.metrics.RecordIdempotency("conflict")
		g.logger.Debug("idempotency key in flight", "key", key)
		return PassThrough, nil, err
	}

	if found {
		if err := g.replay(w, rec); err != nil {
			g.logger.Warn("idempotent replay write failed", "key", key, "error", err)
		}
		g.metrics.RecordIdempotency(Replayed.String())
		return Replayed, nil, nil
	}

	g.metrics.RecordIdempotency(Captured.String())
	return Captured, &CapturingSink{guard: g, key: key, dest: w}, nil
}

// Lookup returns a copy of the completed record for a raw key and request scope.
func (g *Guard) Lookup(r *http.Request, key string) (Record, bool) {
	rec, ok := g.records.Get(g.scopedKey(r, strings.TrimSpace(key)))
	if !ok || rec.pending {
		return Record{}, false
	}
	return rec.clone(), true
}

// Cleanup removes records that expired at or before now.
func (g *Guard) Cleanup(now time.Time) int {
	return g.records.Sweep(now)
}

// Sweep implements expiring.Sweepable.
func (g *Guard) Sweep(now time.Time) int {
	return g.Cleanup(now)
}

func (g *Guard) passThrough(w http.ResponseWriter) (Outcome, Sink, error) {
	g.metrics.RecordIdempotency(PassThrough.String())
	return PassThrough, PassThroughSink{W: w}, nil
}

func (g *Guard) scopedKey(r *http.Request, key string) string {
	if g.scope == nil {
		return key
	}
	if s := g.scope(r); s != "" {
		return s + ":" + key
	}
	return key
}

// lookupOrReserve returns a completed record for key. With in-flight
// conflicts enabled it also reserves a missing key, and reports a pending
// one as ErrInFlight.
func (g *Guard) lookupOrReserve(key string) (Record, bool, error) {
	if !g.inFlight {
		rec, ok := g.records.Get(key)
		if !ok || rec.pending {
			return Record{}, false, nil
		}
		return rec.clone(), true, nil
	}

	now := g.clock.Now()
	var (
		out      Record
		found    bool
		conflict bool
	)
	g.records.Update(key, func(cur Record, ok bool) (Record, time.Time, bool) {
		switch {
		case ok && cur.pending:
			conflict = true
			return cur, cur.ExpiresAt, true
		case ok:
			out, found = cur.clone(), true
			return cur, cur.ExpiresAt, true
		default:
			placeholder := Record{CreatedAt: now, ExpiresAt: now.Add(g.ttl), pending: true}
			return placeholder, placeholder.ExpiresAt, true
		}
	})
	if conflict {
		return Record{}, false, ErrInFlight
	}
	return out, found, nil
}

func (g *Guard) replay(w http.ResponseWriter, rec Record) error {
	h := rec.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(HeaderReplayed, "true")
	return writeResponse(w, rec.Status, h, rec.Body)
}

func (g *Guard) replayable(header http.Header) http.Header {
	out := make(http.Header, len(g.replayHeaders))
	for _, name := range g.replayHeaders {
		if v, ok := header[name]; ok {
			out[name] = append([]string(nil), v...)
		}
	}
	return out
}
