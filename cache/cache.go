// Package cache is the client-held read cache. Entries are fetched on
// demand, served while fresh, and marked stale either by age or by an
// explicit Invalidate. A stale entry is refetched in the background the
// next time it is read; invalidation itself never fetches.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/jrsteele09/go-workforce-client/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc is the clock used when none is configured.
var NowTimeFunc = time.Now

var (
	ErrClosed       = errors.New("cache closed")
	ErrTypeMismatch = errors.New("cached value has a different type")
)

const defaultSweepInterval = time.Minute

// FetchFunc loads the value for one key from the server.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type entry struct {
	key Key

	mu          sync.Mutex
	value       any
	hasValue    bool
	updatedAt   time.Time
	lastUsed    time.Time
	invalidated bool
	generation  uint64
	failures    int
	lastErr     error
	refetching  bool
	refetch     func(ctx context.Context) error
}

// Cache stores query results by Key. The zero value is not usable; call New.
type Cache struct {
	policy  Policy
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics

	entries hashtriemap.HashTrieMap[string, *entry]
	flights singleflight.Group

	sweepInterval time.Duration
	bgCtx         context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

type Option func(*Cache)

func WithPolicy(p Policy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithSweepInterval sets how often unused entries are collected. Zero
// disables the background sweep; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.sweepInterval = d
	}
}

func New(options ...Option) *Cache {
	c := &Cache{
		policy:        DefaultPolicy(),
		now:           NowTimeFunc,
		logger:        log.Logger.With().Str("component", "cache").Logger(),
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range options {
		opt(c)
	}
	c.bgCtx, c.cancel = context.WithCancel(context.Background())

	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}
	return c
}

func (c *Cache) Policy() Policy {
	return c.policy
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.bgCtx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug().Int("removed", n).Msg("cache sweep")
			}
		}
	}
}

func (c *Cache) lookup(key Key) *entry {
	e, _ := c.entries.LoadOrStore(key.id(), &entry{key: append(Key(nil), key...)})
	return e
}

func (e *entry) staleLocked(now time.Time, staleTime time.Duration) bool {
	return e.invalidated || now.Sub(e.updatedAt) >= staleTime
}

// Fetch returns the value cached under key, calling fn when there is none.
//
// A fresh entry is returned as is. A stale entry that holds a value is
// returned immediately and one background refetch is started. With no
// value, fn runs in the caller's goroutine; concurrent callers for the same
// key share the call. Failed reads are retried per Policy.ShouldRetryRead.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn FetchFunc[T]) (T, error) {
	var zero T
	if c.bgCtx.Err() != nil {
		return zero, ErrClosed
	}

	e := c.lookup(key)
	now := c.now()

	e.mu.Lock()
	e.lastUsed = now
	e.refetch = func(ctx context.Context) error {
		_, err := load(ctx, c, e, fn)
		return err
	}
	if e.hasValue {
		v, ok := e.value.(T)
		if !ok {
			e.mu.Unlock()
			return zero, ErrTypeMismatch
		}
		stale := e.staleLocked(now, c.policy.StaleTime)
		e.mu.Unlock()

		if stale {
			c.metrics.ObserveCacheRead("stale")
			c.revalidate(e)
		} else {
			c.metrics.ObserveCacheRead("hit")
		}
		return v, nil
	}
	e.mu.Unlock()

	c.metrics.ObserveCacheRead("miss")
	return load(ctx, c, e, fn)
}

// load runs fn for e, at most once at a time per key.
func load[T any](ctx context.Context, c *Cache, e *entry, fn FetchFunc[T]) (T, error) {
	var zero T
	v, err, _ := c.flights.Do(e.key.id(), func() (any, error) {
		failures := 0
		for {
			gen := e.currentGeneration()
			v, err := fn(ctx)
			if err == nil {
				c.store(e, v, gen)
				return v, nil
			}
			failures++
			if !c.policy.ShouldRetryRead(failures, err) {
				c.fail(e, failures, err)
				return nil, err
			}
			c.logger.Debug().Err(err).Str("key", e.key.String()).Int("failures", failures).Msg("retrying read")
			if err := sleep(ctx, c.policy.RetryDelay); err != nil {
				c.fail(e, failures, err)
				return nil, err
			}
		}
	})
	if err != nil {
		c.metrics.ObserveCacheRead("error")
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *entry) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// store records v as the value of e. gen is the invalidation generation
// observed before v was read; an Invalidate since then leaves e stale.
func (c *Cache) store(e *entry, v any, gen uint64) {
	now := c.now()
	e.mu.Lock()
	e.value = v
	e.hasValue = true
	e.updatedAt = now
	e.lastUsed = now
	e.invalidated = e.generation != gen
	e.failures = 0
	e.lastErr = nil
	e.mu.Unlock()

	// The entry may have been swept while the fetch ran.
	c.entries.LoadOrStore(e.key.id(), e)
	c.metrics.SetCacheEntries(c.Len())
}

func (c *Cache) fail(e *entry, failures int, err error) {
	e.mu.Lock()
	e.failures = failures
	e.lastErr = err
	e.mu.Unlock()
	c.logger.Debug().Err(err).Str("key", e.key.String()).Msg("read failed")
}

// revalidate starts a background refetch of e unless one is running.
func (c *Cache) revalidate(e *entry) bool {
	e.mu.Lock()
	if e.refetching || e.refetch == nil || c.bgCtx.Err() != nil {
		e.mu.Unlock()
		return false
	}
	e.refetching = true
	refetch := e.refetch
	e.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := refetch(c.bgCtx); err != nil {
			c.logger.Debug().Err(err).Str("key", e.key.String()).Msg("background refetch failed")
		}
		e.mu.Lock()
		e.refetching = false
		e.mu.Unlock()
	}()
	return true
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many entries matched. Nothing is fetched; the next read of a
// marked entry triggers the refetch. Invalidating an already stale entry
// changes nothing.
func (c *Cache) Invalidate(prefix Key) int {
	n := 0
	c.entries.Range(func(_ string, e *entry) bool {
		if e.key.HasPrefix(prefix) {
			e.mu.Lock()
			e.invalidated = true
			e.generation++
			e.mu.Unlock()
			n++
		}
		return true
	})
	return n
}

// IsStale reports whether key is cached and due for a refetch.
func (c *Cache) IsStale(key Key) bool {
	e, ok := c.entries.Load(key.id())
	if !ok {
		return false
	}
	now := c.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasValue && e.staleLocked(now, c.policy.StaleTime) || e.invalidated
}

// StaleKeys returns every cached key due for a refetch, sorted.
func (c *Cache) StaleKeys() []Key {
	var keys []Key
	c.entries.Range(func(_ string, e *entry) bool {
		if c.IsStale(e.key) {
			keys = append(keys, e.key)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Set stores v under key as a fresh value.
func (c *Cache) Set(key Key, v any) {
	e := c.lookup(key)
	c.store(e, v, e.currentGeneration())
}

// Peek returns the cached value for key without fetching or touching its
// staleness.
func Peek[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e, ok := c.entries.Load(key.id())
	if !ok {
		return zero, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasValue {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Failures returns how many attempts the last failed read of key made.
func (c *Cache) Failures(key Key) int {
	e, ok := c.entries.Load(key.id())
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures
}

// Remove drops key from the cache.
func (c *Cache) Remove(key Key) bool {
	_, ok := c.entries.LoadAndDelete(key.id())
	if ok {
		c.metrics.SetCacheEntries(c.Len())
	}
	return ok
}

// RemovePrefix drops every entry under prefix and returns how many were
// dropped. Unlike Invalidate, the values are gone.
func (c *Cache) RemovePrefix(prefix Key) int {
	n := 0
	c.entries.Range(func(id string, e *entry) bool {
		if e.key.HasPrefix(prefix) {
			if _, ok := c.entries.LoadAndDelete(id); ok {
				n++
			}
		}
		return true
	})
	if n > 0 {
		c.metrics.SetCacheEntries(c.Len())
	}
	return n
}

func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(string, *entry) bool {
		n++
		return true
	})
	return n
}

// Focus is called when the application regains focus. Under a policy with
// RefetchOnFocus it revalidates stale entries and returns how many refetches
// started; otherwise it does nothing.
func (c *Cache) Focus() int {
	if !c.policy.RefetchOnFocus {
		return 0
	}
	n := 0
	now := c.now()
	c.entries.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		stale := e.hasValue && e.staleLocked(now, c.policy.StaleTime)
		e.mu.Unlock()
		if stale && c.revalidate(e) {
			n++
		}
		return true
	})
	return n
}

// Sweep drops entries that have not been read for GCTime and returns how
// many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	n := 0
	c.entries.Range(func(id string, e *entry) bool {
		e.mu.Lock()
		expired := !e.refetching && now.Sub(e.lastUsed) >= c.policy.GCTime
		e.mu.Unlock()
		if expired {
			if _, ok := c.entries.LoadAndDelete(id); ok {
				n++
			}
		}
		return true
	})
	if n > 0 {
		c.metrics.SetCacheEntries(c.Len())
	}
	return n
}

// Close stops the sweep loop, cancels background refetches and waits for
// them to return.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}

// Mutate runs a write once and, on success, invalidates the given key
// prefixes. Failed mutations are never retried.
func Mutate[T any](ctx context.Context, c *Cache, fn FetchFunc[T], invalidate ...Key) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("mutation failed")
		return v, err
	}
	for _, key := range invalidate {
		c.Invalidate(key)
	}
	return v, nil
}
