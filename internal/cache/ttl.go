package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads a fresh value from the backing source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Option configures a TTLCache.
type Option[T any] func(*TTLCache[T])

// WithClock overrides the time source, used by tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *TTLCache[T]) { c.now = now }
}

// WithEmptyValue sets the value returned when a refresh fails and no prior
// value exists. Defaults to the zero value of T.
func WithEmptyValue[T any](empty T) Option[T] {
	return func(c *TTLCache[T]) { c.empty = empty }
}

// WithServeStale makes callers that find an expired entry while a refresh
// is already in flight receive the prior stale value immediately instead of
// waiting for the refresh to finish.
func WithServeStale[T any](serve bool) Option[T] {
	return func(c *TTLCache[T]) { c.serveStale = serve }
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(c *TTLCache[T]) { c.logger = logger }
}

// TTLCache is a time-boxed cache for a single expensive-to-fetch value.
// Reads never surface fetch errors: an expired entry falls back to the
// stale value when the refresh fails, and a cold cache falls back to the
// configured empty value. Concurrent refreshes collapse to a single
// backing fetch.
type TTLCache[T any] struct {
	mu       sync.RWMutex
	value    T
	hasValue bool
	cachedAt time.Time

	ttl        time.Duration
	empty      T
	serveStale bool
	fetch      FetchFunc[T]
	group      singleflight.Group
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a TTLCache around fetch. The cache starts cold; the first
// GetOrRefresh triggers the initial load.
func New[T any](ttl time.Duration, fetch FetchFunc[T], opts ...Option[T]) *TTLCache[T] {
	c := &TTLCache[T]{
		ttl:    ttl,
		fetch:  fetch,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value if its age is within the TTL.
func (c *TTLCache[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasValue || c.now().Sub(c.cachedAt) > c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// GetOrRefresh returns the cached value, refreshing it first when expired.
// A failed refresh serves the stale value if one exists, otherwise the
// configured empty value. The error stays internal; callers on the hot
// path only ever see a value.
func (c *TTLCache[T]) GetOrRefresh(ctx context.Context) T {
	if v, ok := c.Get(); ok {
		metrics.Get().RecordCacheHit()
		return v
	}
	metrics.Get().RecordCacheMiss()

	ch := c.group.DoChan("value", func() (interface{}, error) {
		return c.fetch(ctx)
	})

	if c.serveStale {
		c.mu.RLock()
		if c.hasValue {
			v := c.value
			age := c.now().Sub(c.cachedAt)
			c.mu.RUnlock()
			// The refresh keeps running behind the stale response; its
			// result still has to land in the cache or the entry would
			// stay expired and every read would refetch.
			go func() {
				res := <-ch
				if res.Err != nil {
					c.logger.Warn().Err(res.Err).Msg("background refresh failed, keeping stale value")
					return
				}
				c.set(res.Val.(T))
			}()
			metrics.Get().RecordCacheStaleServe()
			c.logger.Debug().Dur("age", age).Msg("refresh in flight, serving stale value")
			return v
		}
		c.mu.RUnlock()
	}

	res := <-ch
	if res.Err != nil {
		c.mu.RLock()
		if c.hasValue {
			v := c.value
			age := c.now().Sub(c.cachedAt)
			c.mu.RUnlock()
			metrics.Get().RecordCacheStaleServe()
			c.logger.Warn().Err(res.Err).Dur("age", age).Msg("refresh failed, serving stale value")
			return v
		}
		c.mu.RUnlock()
		c.logger.Warn().Err(res.Err).Msg("refresh failed with cold cache, serving empty value")
		return c.empty
	}

	// Every waiter stores the shared result; redundant sets are harmless
	// and keep cachedAt honest for waiters that raced the first setter.
	v := res.Val.(T)
	c.set(v)
	return v
}

// Invalidate clears the entry, forcing the next read to refetch.
func (c *TTLCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.hasValue = false
	c.cachedAt = time.Time{}
}

// Age returns how old the cached entry is. A cold cache reports a negative
// age.
func (c *TTLCache[T]) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasValue {
		return -1
	}
	return c.now().Sub(c.cachedAt)
}

func (c *TTLCache[T]) set(v T) {
	c.mu.Lock()
	c.value = v
	c.hasValue = true
	c.cachedAt = c.now()
	c.mu.Unlock()
}
