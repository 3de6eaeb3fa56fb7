package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetRespectsTTL(t *testing.T) {
	base := time.Now()
	now := base
	c := New[string](time.Second, func(context.Context) (string, error) {
		return "menu", nil
	}, WithClock[string](func() time.Time { return now }))

	c.GetOrRefresh(context.Background())

	// One millisecond before expiry the value is still served
	now = base.Add(time.Second - time.Millisecond)
	if v, ok := c.Get(); !ok || v != "menu" {
		t.Errorf("expected fresh value at ttl-1ms, got %q ok=%v", v, ok)
	}

	// One millisecond past expiry it is gone
	now = base.Add(time.Second + time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Error("expected no value at ttl+1ms")
	}
}

func TestGetOrRefreshStoresFreshValue(t *testing.T) {
	calls := 0
	c := New[string](time.Minute, func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})

	if v := c.GetOrRefresh(context.Background()); v != "fresh" {
		t.Errorf("expected fresh, got %q", v)
	}
	// Second read hits the cache
	if v := c.GetOrRefresh(context.Background()); v != "fresh" {
		t.Errorf("expected fresh, got %q", v)
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}

func TestGetOrRefreshServesStaleOnError(t *testing.T) {
	base := time.Now()
	now := base
	fail := false
	c := New[string](time.Second, func(context.Context) (string, error) {
		if fail {
			return "", errors.New("backing store down")
		}
		return "menu", nil
	}, WithClock[string](func() time.Time { return now }))

	c.GetOrRefresh(context.Background())

	// Expire the entry, then make the backing fetch fail
	now = base.Add(2 * time.Second)
	fail = true

	if v := c.GetOrRefresh(context.Background()); v != "menu" {
		t.Errorf("expected stale value on failed refresh, got %q", v)
	}
}

func TestGetOrRefreshColdFailureReturnsEmpty(t *testing.T) {
	c := New[string](time.Second, func(context.Context) (string, error) {
		return "", errors.New("backing store down")
	}, WithEmptyValue[string]("fallback"))

	if v := c.GetOrRefresh(context.Background()); v != "fallback" {
		t.Errorf("expected empty value on cold failure, got %q", v)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	calls := 0
	c := New[string](time.Minute, func(context.Context) (string, error) {
		calls++
		return "menu", nil
	})

	c.GetOrRefresh(context.Background())
	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Error("expected no value after invalidate")
	}
	c.GetOrRefresh(context.Background())
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	var fetches int64
	release := make(chan struct{})
	c := New[string](time.Second, func(context.Context) (string, error) {
		atomic.AddInt64(&fetches, 1)
		<-release
		return "menu", nil
	})

	const n = 10
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			started.Done()
			c.GetOrRefresh(context.Background())
			done.Done()
		}()
	}
	started.Wait()
	// Give all goroutines a moment to reach the singleflight gate
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if got := atomic.LoadInt64(&fetches); got != 1 {
		t.Errorf("expected exactly 1 fetch for %d concurrent callers, got %d", n, got)
	}
}

func TestServeStaleStoresRefreshResult(t *testing.T) {
	base := time.Now()
	now := base
	var mu sync.Mutex
	fetches := 0
	c := New[string](time.Second, func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		fetches++
		if fetches == 1 {
			return "old", nil
		}
		return "new", nil
	}, WithClock[string](func() time.Time { return now }), WithServeStale[string](true))

	c.GetOrRefresh(context.Background())
	now = base.Add(2 * time.Second)

	if v := c.GetOrRefresh(context.Background()); v != "old" {
		t.Fatalf("expected stale value while refresh is in flight, got %q", v)
	}

	// The background refresh must replace the expired entry
	deadline := time.Now().Add(time.Second)
	for {
		if v, ok := c.Get(); ok && v == "new" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh result was never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Fresh again: no further fetches on subsequent reads
	if v := c.GetOrRefresh(context.Background()); v != "new" {
		t.Errorf("expected fresh value after refresh landed, got %q", v)
	}
	mu.Lock()
	defer mu.Unlock()
	if fetches != 2 {
		t.Errorf("expected 2 fetches, got %d", fetches)
	}
}

func TestServeStalePolicyReturnsImmediately(t *testing.T) {
	base := time.Now()
	now := base
	release := make(chan struct{})
	first := true
	c := New[string](time.Second, func(context.Context) (string, error) {
		if first {
			first = false
			return "old", nil
		}
		<-release
		return "new", nil
	}, WithClock[string](func() time.Time { return now }), WithServeStale[string](true))

	c.GetOrRefresh(context.Background())
	now = base.Add(2 * time.Second)

	// The fetch is blocked, but serve-stale callers must not be
	done := make(chan string, 1)
	go func() { done <- c.GetOrRefresh(context.Background()) }()

	select {
	case v := <-done:
		if v != "old" {
			t.Errorf("expected stale value, got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("serve-stale caller blocked on in-flight refresh")
	}
	close(release)
}
