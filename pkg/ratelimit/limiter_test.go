package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kegz/primeqa-common/pkg/apperror"
	"github.com/kegz/primeqa-common/pkg/clock"
	"github.com/kegz/primeqa-common/pkg/expiring"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newRequest(remote string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/items", nil)
	r.RemoteAddr = remote
	return r
}

func TestLimiter_FirstNAllowedThenDenied(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		clk := clock.NewManual(epoch)
		l := New(WithMax(n), WithWindow(time.Second), WithClock(clk))

		for i := 1; i <= n; i++ {
			d, err := l.Check(newRequest("10.0.0.1:1234"))
			require.NoError(t, err)
			assert.True(t, d.Allowed, "call %d of %d", i, n)
			assert.Equal(t, i, d.Count)
			assert.Equal(t, n-i, d.Remaining)
		}

		d, err := l.Check(newRequest("10.0.0.1:1234"))
		require.NoError(t, err)
		assert.False(t, d.Allowed, "call %d must be denied", n+1)
		assert.Equal(t, time.Second, d.RetryAfter)

		clk.Advance(time.Second)
		d, err = l.Check(newRequest("10.0.0.1:1234"))
		require.NoError(t, err)
		assert.True(t, d.Allowed, "new window after expiry")
		assert.Equal(t, 1, d.Count)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(WithMax(1))

	d, _ := l.Check(newRequest("10.0.0.1:1"))
	assert.True(t, d.Allowed)
	d, _ = l.Check(newRequest("10.0.0.2:1"))
	assert.True(t, d.Allowed)
	d, _ = l.Check(newRequest("10.0.0.1:2"))
	assert.False(t, d.Allowed)
}

func TestLimiter_NonPositiveMaxDeniesFirst(t *testing.T) {
	for _, m := range []int{0, -1} {
		l := New(WithMax(m))
		d, err := l.Check(newRequest("10.0.0.1:1"))
		require.NoError(t, err)
		assert.False(t, d.Allowed, "max=%d", m)
		assert.Equal(t, 0, l.store.Len(), "nothing stored for a denied first call")
	}
}

func TestLimiter_NonPositiveWindowNeverDenies(t *testing.T) {
	l := New(WithMax(1), WithWindow(0))
	for i := 0; i < 5; i++ {
		d, err := l.Check(newRequest("10.0.0.1:1"))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestLimiter_KeyFuncErrorPropagates(t *testing.T) {
	boom := errors.New("no key")
	l := New(WithKeyFunc(func(*http.Request) (string, error) { return "", boom }))

	_, err := l.Check(newRequest("10.0.0.1:1"))
	assert.Same(t, boom, err)
}

func TestLimiter_DeniedError(t *testing.T) {
	l := New(WithMax(0), WithMessage("slow down"))
	d, _ := l.Check(newRequest("10.0.0.1:1"))

	err := d.Err()
	require.Error(t, err)
	var ae *apperror.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperror.CodeForbidden, ae.Code)
	assert.Equal(t, http.StatusTooManyRequests, ae.Status)
	assert.Equal(t, "slow down", ae.Message)
	assert.Contains(t, ae.Details, "retry_after_seconds")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestErrRateLimited_OnlyMatchesDenials(t *testing.T) {
	assert.False(t, errors.Is(apperror.ErrForbidden, ErrRateLimited))
	assert.False(t, errors.Is(apperror.Forbidden("tenant does not match credentials"), ErrRateLimited))
	assert.False(t, errors.Is(apperror.New(apperror.CodeForbidden, http.StatusTooManyRequests, "other"), ErrRateLimited))

	d, _ := New(WithMax(0)).Check(newRequest("10.0.0.1:1"))
	assert.True(t, errors.Is(d.Err(), ErrRateLimited))
}

func TestLimiter_ConcurrentChecksDoNotLoseUpdates(t *testing.T) {
	l := New(WithMax(50), WithWindow(time.Hour))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Take("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestLimiter_Cleanup(t *testing.T) {
	clk := clock.NewManual(epoch)
	l := New(WithWindow(time.Second), WithClock(clk))
	l.Take("a")
	l.Take("b")
	clk.Advance(500 * time.Millisecond)
	l.Take("c")

	assert.Equal(t, 2, l.Cleanup(epoch.Add(time.Second)))
	assert.Equal(t, 0, l.Cleanup(epoch.Add(time.Second)), "cleanup is idempotent")
	assert.Equal(t, 1, l.Cleanup(epoch.Add(time.Hour)))
}

func TestLimiter_SharedStore(t *testing.T) {
	store := expiring.New[Counter]()
	a := New(WithMax(1), WithStore(store))
	b := New(WithMax(1), WithStore(store))

	assert.True(t, a.Take("k").Allowed)
	assert.False(t, b.Take("k").Allowed)
}

func TestLimiter_Stats(t *testing.T) {
	stats := NewMemoryStats(WithTrackKeys(true))
	l := New(WithMax(1), WithStats(stats))

	_, _ = l.Check(newRequest("10.0.0.1:1"))
	_, _ = l.Check(newRequest("10.0.0.1:1"))

	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, stats.Total())
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, stats.Route("GET /items"))
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, stats.Key("10.0.0.1"))
}
