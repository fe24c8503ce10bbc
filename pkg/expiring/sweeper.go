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

package expiring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kegz/primeqa-common/pkg/clock"
	"github.com/kegz/primeqa-common/pkg/metrics"
)

// DefaultSweepInterval is used when a Sweeper is given a non-positive interval.
const DefaultSweepInterval = time.Minute

// Sweepable is anything that can drop entries expired at a point in time.
type Sweepable interface {
	Sweep(now time.Time) int
}

// SweepFunc adapts a function to Sweepable.
type SweepFunc func(now time.Time) int

func (f SweepFunc) Sweep(now time.Time) int { return f(now) }

// Target names a Sweepable for logs and metrics.
type Target struct {
	Name  string
	Store Sweepable
}

// Sweeper periodically sweeps its targets. Start and Stop are idempotent.
type Sweeper struct {
	interval time.Duration
	targets  []Target
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithTarget adds a named store to sweep.
func WithTarget(name string, s Sweepable) SweeperOption {
	return func(sw *Sweeper) {
		sw.targets = append(sw.targets, Target{Name: name, Store: s})
	}
}

// WithSweeperClock sets the time passed to Sweep on each tick.
func WithSweeperClock(c clock.Clock) SweeperOption {
	return func(sw *Sweeper) {
		sw.clock = c
	}
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(sw *Sweeper) {
		sw.logger = l
	}
}

// WithSweeperMetrics records evictions per target.
func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(sw *Sweeper) {
		sw.metrics = m
	}
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	sw := &Sweeper{interval: interval}
	for _, opt := range opts {
		opt(sw)
	}
	sw.clock = clock.OrSystem(sw.clock)
	if sw.logger == nil {
		sw.logger = slog.Default()
	}
	return sw
}

// Interval returns the tick interval.
func (sw *Sweeper) Interval() time.Duration { return sw.interval }

// Start launches the background loop. Calling Start on a running sweeper
// logs a warning and does nothing.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		sw.logger.Warn("sweeper already running", "interval", sw.interval)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})
	sw.running = true

	go sw.loop(ctx, sw.done)
	sw.logger.Debug("sweeper started", "interval", sw.interval, "targets", len(sw.targets))
}

// Stop halts the loop and waits for it to exit. Stopping a stopped sweeper is a no-op.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	cancel, done := sw.cancel, sw.done
	sw.running = false
	sw.cancel = nil
	sw.done = nil
	sw.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (sw *Sweeper) Running() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.running
}

// Run blocks sweeping until ctx is done. It is for hosts that manage the
// goroutine themselves, such as an errgroup.
func (sw *Sweeper) Run(ctx context.Context) error {
	sw.Start(ctx)
	<-ctx.Done()
	sw.Stop()
	return nil
}

// RunOnce sweeps every target at now and returns the total removed.
func (sw *Sweeper) RunOnce(now time.Time) int {
	total := 0
	for _, t := range sw.targets {
		n := t.Store.Sweep(now)
		if n > 0 {
			sw.logger.Debug("swept expired entries", "store", t.Name, "removed", n)
		}
		sw.metrics.RecordEvictions(t.Name, n)
		total += n
	}
	return total
}

func (sw *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer sw.release(done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(sw.clock.Now())
		}
	}
}

// release clears the running state when the loop exits on its own, after
// the parent context of Start was cancelled. A Stop or a newer Start has
// already replaced done, so their state is left alone.
func (sw *Sweeper) release(done chan struct{}) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.done != done {
		return
	}
	sw.cancel()
	sw.running = false
	sw.cancel = nil
	sw.done = nil
}
