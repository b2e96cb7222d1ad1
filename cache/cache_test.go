package cache_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/apierror"
	"github.com/jrsteele09/go-workforce-client/cache"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, policy cache.Policy) (*cache.Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	c := cache.New(cache.WithPolicy(policy), cache.WithNow(clock.Now), cache.WithSweepInterval(0))
	t.Cleanup(c.Close)
	return c, clock
}

func testPolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.RetryDelay = 0
	return p
}

func counter[T any](v T, err error) (cache.FetchFunc[T], *atomic.Int32) {
	calls := &atomic.Int32{}
	return func(context.Context) (T, error) {
		calls.Add(1)
		return v, err
	}, calls
}

func TestKey(t *testing.T) {
	tenants := cache.Key{"tenants"}
	detail := tenants.With("detail", "t-1")

	require.True(t, detail.HasPrefix(tenants))
	require.True(t, detail.HasPrefix(detail))
	require.False(t, tenants.HasPrefix(detail))
	require.False(t, cache.Key{"tenant-settings"}.HasPrefix(tenants))
	require.Equal(t, cache.Key{"tenants"}, tenants, "With must not alias the receiver")
	require.Equal(t, "tenants/detail/t-1", detail.String())
}

func TestFingerprint(t *testing.T) {
	a := cache.Fingerprint(map[string]any{"page": 1, "status": "active"})
	b := cache.Fingerprint(map[string]any{"status": "active", "page": 1})
	c := cache.Fingerprint(map[string]any{"page": 2, "status": "active"})

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, "-", cache.Fingerprint(nil))
}

func TestPolicy_ShouldRetryRead(t *testing.T) {
	p := cache.DefaultPolicy()
	apiErr := &apierror.APIError{Status: http.StatusBadRequest, Message: "bad"}
	connErr := &apierror.ConnectivityError{Message: apierror.ConnectivityMessage}

	t.Run("connectivity never retried", func(t *testing.T) {
		require.False(t, p.ShouldRetryRead(1, connErr))
	})

	t.Run("api error retried once", func(t *testing.T) {
		require.True(t, p.ShouldRetryRead(1, apiErr))
		require.False(t, p.ShouldRetryRead(2, apiErr))
	})

	t.Run("unclassified never retried", func(t *testing.T) {
		require.False(t, p.ShouldRetryRead(1, errors.New("boom")))
	})

	t.Run("mutations never retried", func(t *testing.T) {
		require.False(t, p.ShouldRetryMutation(1, apiErr))
		require.False(t, p.ShouldRetryMutation(1, connErr))
	})
}

func TestFetch_FreshThenStale(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, clock := newTestCache(t, testPolicy())
	key := cache.Key{"tenants", "list"}

	var version atomic.Int32
	fetch := func(context.Context) (int32, error) {
		return version.Add(1), nil
	}

	v, err := cache.Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	t.Run("fresh value is served without a fetch", func(t *testing.T) {
		v, err := cache.Fetch(context.Background(), c, key, fetch)
		require.NoError(t, err)
		require.EqualValues(t, 1, v)
		require.EqualValues(t, 1, version.Load())
		require.False(t, c.IsStale(key))
	})

	t.Run("stale value is served while it revalidates", func(t *testing.T) {
		clock.Advance(cache.DefaultStaleTime)
		require.True(t, c.IsStale(key))

		v, err := cache.Fetch(context.Background(), c, key, fetch)
		require.NoError(t, err)
		require.EqualValues(t, 1, v)

		require.Eventually(t, func() bool {
			v, ok := cache.Peek[int32](c, key)
			return ok && v == 2
		}, time.Second, 5*time.Millisecond)
		require.False(t, c.IsStale(key))
	})

	c.Close()
}

func TestFetch_TypeMismatch(t *testing.T) {
	c, _ := newTestCache(t, testPolicy())
	key := cache.Key{"users"}
	c.Set(key, "a string")

	fetch, _ := counter(42, nil)
	_, err := cache.Fetch(context.Background(), c, key, fetch)
	require.ErrorIs(t, err, cache.ErrTypeMismatch)
}

func TestFetch_ReadRetry(t *testing.T) {
	t.Run("api error gets exactly one retry", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		fetch, calls := counter(0, error(&apierror.APIError{Status: http.StatusBadRequest, Message: "bad"}))

		_, err := cache.Fetch(context.Background(), c, cache.Key{"goals"}, fetch)
		require.ErrorIs(t, err, apierror.ErrAPI)
		require.EqualValues(t, 2, calls.Load())
		require.Equal(t, 2, c.Failures(cache.Key{"goals"}))
	})

	t.Run("connectivity error is not retried", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		fetch, calls := counter(0, error(&apierror.ConnectivityError{Message: apierror.ConnectivityMessage}))

		_, err := cache.Fetch(context.Background(), c, cache.Key{"goals"}, fetch)
		require.ErrorIs(t, err, apierror.ErrConnectivity)
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("api error then success", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "", &apierror.APIError{Status: http.StatusConflict, Message: "busy"}
			}
			return "ok", nil
		}

		v, err := cache.Fetch(context.Background(), c, cache.Key{"goals"}, fetch)
		require.NoError(t, err)
		require.Equal(t, "ok", v)
		require.Zero(t, c.Failures(cache.Key{"goals"}))
	})
}

func TestFetch_ConcurrentReadersShareOneFetch(t *testing.T) {
	c, _ := newTestCache(t, testPolicy())
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Fetch(context.Background(), c, cache.Key{"reviews"}, fetch)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		require.Equal(t, "value", r)
	}
}

func TestInvalidate(t *testing.T) {
	seed := func(t *testing.T) *cache.Cache {
		t.Helper()
		c, _ := newTestCache(t, testPolicy())
		c.Set(cache.Key{"tenants", "list"}, 1)
		c.Set(cache.Key{"tenants", "detail", "t-1"}, 1)
		c.Set(cache.Key{"users", "list"}, 1)
		c.Set(cache.Key{"admin", "system-metrics"}, 1)
		return c
	}

	t.Run("prefix marks only matching keys", func(t *testing.T) {
		c := seed(t)
		require.Equal(t, 2, c.Invalidate(cache.Key{"tenants"}))
		require.Equal(t, []cache.Key{
			{"tenants", "detail", "t-1"},
			{"tenants", "list"},
		}, c.StaleKeys())
		require.False(t, c.IsStale(cache.Key{"users", "list"}))
	})

	t.Run("invalidation does not fetch", func(t *testing.T) {
		c := seed(t)
		c.Invalidate(cache.Key{"users"})
		v, ok := cache.Peek[int](c, cache.Key{"users", "list"})
		require.True(t, ok)
		require.Equal(t, 1, v)
	})

	t.Run("idempotent and commutative", func(t *testing.T) {
		once := seed(t)
		once.Invalidate(cache.Key{"tenants"})
		once.Invalidate(cache.Key{"users"})

		twice := seed(t)
		twice.Invalidate(cache.Key{"users"})
		twice.Invalidate(cache.Key{"tenants"})
		twice.Invalidate(cache.Key{"tenants", "list"})
		twice.Invalidate(cache.Key{"users"})

		require.Equal(t, once.StaleKeys(), twice.StaleKeys())
	})

	t.Run("unknown prefix matches nothing", func(t *testing.T) {
		c := seed(t)
		require.Zero(t, c.Invalidate(cache.Key{"payroll"}))
		require.Empty(t, c.StaleKeys())
	})

	t.Run("invalidation during an in-flight fetch survives", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			_, err := cache.Fetch(context.Background(), c, cache.Key{"tenants", "list"}, func(context.Context) (int, error) {
				close(started)
				<-release
				return 1, nil
			})
			done <- err
		}()

		<-started
		require.Equal(t, 1, c.Invalidate(cache.Key{"tenants"}))
		close(release)
		require.NoError(t, <-done)

		require.True(t, c.IsStale(cache.Key{"tenants", "list"}))
		v, ok := cache.Peek[int](c, cache.Key{"tenants", "list"})
		require.True(t, ok)
		require.Equal(t, 1, v)

		t.Run("next fetch clears it", func(t *testing.T) {
			fn, _ := counter(2, nil)
			_, err := cache.Fetch(context.Background(), c, cache.Key{"tenants", "list"}, fn)
			require.NoError(t, err)
			require.Eventually(t, func() bool { return !c.IsStale(cache.Key{"tenants", "list"}) }, time.Second, time.Millisecond)
		})
	})

	t.Run("remove prefix drops values", func(t *testing.T) {
		c := seed(t)
		require.Equal(t, 2, c.RemovePrefix(cache.Key{"tenants"}))
		require.Equal(t, 2, c.Len())
		_, ok := cache.Peek[int](c, cache.Key{"tenants", "list"})
		require.False(t, ok)
		_, ok = cache.Peek[int](c, cache.Key{"admin", "system-metrics"})
		require.True(t, ok)
	})
}

func TestMutate(t *testing.T) {
	t.Run("failure is not retried and invalidates nothing", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		c.Set(cache.Key{"tenants", "list"}, 1)
		fn, calls := counter(0, error(&apierror.APIError{Status: http.StatusBadRequest, Message: "bad"}))

		_, err := cache.Mutate(context.Background(), c, fn, cache.Key{"tenants"})
		require.Error(t, err)
		require.EqualValues(t, 1, calls.Load())
		require.Empty(t, c.StaleKeys())
	})

	t.Run("success invalidates", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		c.Set(cache.Key{"tenants", "list"}, 1)
		fn, _ := counter("t-2", nil)

		id, err := cache.Mutate(context.Background(), c, fn, cache.Key{"tenants"})
		require.NoError(t, err)
		require.Equal(t, "t-2", id)
		require.True(t, c.IsStale(cache.Key{"tenants", "list"}))
	})
}

func TestFocus(t *testing.T) {
	t.Run("no-op by default", func(t *testing.T) {
		c, _ := newTestCache(t, testPolicy())
		fetch, calls := counter(1, nil)
		_, err := cache.Fetch(context.Background(), c, cache.Key{"feedback"}, fetch)
		require.NoError(t, err)
		c.Invalidate(cache.Key{"feedback"})

		require.Zero(t, c.Focus())
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("revalidates when enabled", func(t *testing.T) {
		p := testPolicy()
		p.RefetchOnFocus = true
		c, _ := newTestCache(t, p)
		fetch, calls := counter(1, nil)
		_, err := cache.Fetch(context.Background(), c, cache.Key{"feedback"}, fetch)
		require.NoError(t, err)
		c.Invalidate(cache.Key{"feedback"})

		require.Equal(t, 1, c.Focus())
		require.Eventually(t, func() bool {
			return calls.Load() == 2 && !c.IsStale(cache.Key{"feedback"})
		}, time.Second, 5*time.Millisecond)
	})
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(t, testPolicy())
	c.Set(cache.Key{"old"}, 1)
	clock.Advance(cache.DefaultGCTime / 2)
	c.Set(cache.Key{"recent"}, 1)
	clock.Advance(cache.DefaultGCTime / 2)

	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())
	_, ok := cache.Peek[int](c, cache.Key{"recent"})
	require.True(t, ok)
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := cache.New(cache.WithSweepInterval(time.Millisecond))
	c.Set(cache.Key{"x"}, 1)
	c.Close()
	c.Close()

	fetch, _ := counter(1, nil)
	_, err := cache.Fetch(context.Background(), c, cache.Key{"x"}, fetch)
	require.ErrorIs(t, err, cache.ErrClosed)
}
