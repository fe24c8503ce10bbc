package expiring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kegz/primeqa-common/pkg/clock"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStore_GetBeforeAndAfterExpiry(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New[string](WithClock(clk))

	s.Set("k", "v", epoch.Add(time.Second))

	clk.Advance(999 * time.Millisecond)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clk.Advance(time.Millisecond)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry at its expiry instant is absent")
	assert.Equal(t, 0, s.Len(), "lazy eviction deletes the entry")

	_, ok = s.Get("k")
	assert.False(t, ok, "no resurrection after eviction")
}

func TestStore_SetOverwritesAndShortens(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New[int](WithClock(clk))

	s.Set("k", 1, epoch.Add(time.Hour))
	s.Set("k", 2, epoch.Add(time.Second))

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	clk.Advance(2 * time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestStore_Update(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New[int](WithClock(clk))

	incr := func(cur int, ok bool) (int, time.Time, bool) {
		if !ok {
			return 1, epoch.Add(time.Minute), true
		}
		return cur + 1, epoch.Add(time.Minute), true
	}

	assert.Equal(t, 1, s.Update("k", incr))
	assert.Equal(t, 2, s.Update("k", incr))

	got := s.Update("k", func(cur int, ok bool) (int, time.Time, bool) {
		return cur, time.Time{}, false
	})
	assert.Equal(t, 2, got)
	assert.Equal(t, 0, s.Len())
}

func TestStore_UpdateSeesExpiredAsMissing(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New[int](WithClock(clk))
	s.Set("k", 42, epoch.Add(time.Second))
	clk.Advance(time.Second)

	var sawOK bool
	s.Update("k", func(cur int, ok bool) (int, time.Time, bool) {
		sawOK = ok
		return 0, time.Time{}, false
	})
	assert.False(t, sawOK)
}

func TestStore_UpdateConcurrent(t *testing.T) {
	s := New[int]()
	far := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("k", func(cur int, ok bool) (int, time.Time, bool) {
				return cur + 1, far, true
			})
		}()
	}
	wg.Wait()

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 100, v, "no lost updates")
}

func TestStore_Sweep(t *testing.T) {
	s := New[string]()
	s.Set("a", "a", epoch.Add(time.Second))
	s.Set("b", "b", epoch.Add(2*time.Second))
	s.Set("c", "c", epoch.Add(time.Hour))

	assert.Equal(t, 2, s.Sweep(epoch.Add(2*time.Second)))
	assert.Equal(t, 0, s.Sweep(epoch.Add(2*time.Second)), "sweep is idempotent")
	assert.Equal(t, 1, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s := New[string]()
	s.Set("a", "a", time.Now().Add(time.Hour))
	s.Delete("a")
	s.Delete("missing")

	_, ok := s.Get("a")
	assert.False(t, ok)
}
