package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/toolgate/envelope"
)

func newTestResponseCache() *ResponseCache {
	// Disabled remote: everything lands in the LRU fallback.
	remote := NewRemote(RemoteConfig{}, nil)
	return NewResponseCache(remote, 100, time.Minute, nil)
}

func mustEnvelope(t *testing.T, fields map[string]any) *envelope.Envelope {
	t.Helper()
	env, err := envelope.New(fields, "next")
	if err != nil {
		t.Fatalf("envelope.New failed: %v", err)
	}
	return env
}

func TestResponseCacheStoreThenCheck(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	env := mustEnvelope(t, map[string]any{"order_id": "B456", "carrier": "FastFreight"})
	if err := rc.Store(ctx, "resp:t:1", env, 0); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, notModified, err := rc.Check(ctx, "resp:t:1", "")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if notModified != nil {
		t.Fatal("Check without If-None-Match must not return a conditional result")
	}
	if got == nil {
		t.Fatal("Check should hit after Store")
	}
	if !got.Meta.FromCache {
		t.Error("cached hit must force from_cache = true")
	}
	if got.Fields["carrier"] != "FastFreight" {
		t.Errorf("carrier = %v, want FastFreight", got.Fields["carrier"])
	}
	if got.Meta.ETag != env.Meta.ETag {
		t.Errorf("ETag = %q, want %q", got.Meta.ETag, env.Meta.ETag)
	}
}

func TestResponseCacheConditionalHit(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	env := mustEnvelope(t, map[string]any{"order_id": "B456"})
	if err := rc.Store(ctx, "resp:t:2", env, 0); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, notModified, err := rc.Check(ctx, "resp:t:2", env.Meta.ETag)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if got != nil {
		t.Error("a matching ETag must not return the business payload")
	}
	if notModified == nil {
		t.Fatal("a matching ETag should return the 304-equivalent result")
	}
	if notModified.Status != 304 {
		t.Errorf("Status = %d, want 304", notModified.Status)
	}
	if !notModified.Meta.FromCache {
		t.Error("conditional hit meta should be marked from_cache")
	}
}

func TestResponseCacheMissReturnsNil(t *testing.T) {
	rc := newTestResponseCache()

	env, notModified, err := rc.Check(context.Background(), "resp:t:absent", "")
	if err != nil || env != nil || notModified != nil {
		t.Errorf("miss should be (nil, nil, nil), got (%v, %v, %v)", env, notModified, err)
	}
}

func TestResponseCacheTTLExpiry(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	now := time.Now()
	rc.now = func() time.Time { return now }

	env := mustEnvelope(t, map[string]any{"order_id": "B456"})
	if err := rc.Store(ctx, "resp:t:3", env, 30*time.Second); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Just before expiry: still a hit.
	rc.now = func() time.Time { return now.Add(29 * time.Second) }
	if got, _, _ := rc.Check(ctx, "resp:t:3", ""); got == nil {
		t.Error("entry should still be live before its TTL")
	}

	// Past expiry: miss.
	rc.now = func() time.Time { return now.Add(31 * time.Second) }
	if got, _, _ := rc.Check(ctx, "resp:t:3", ""); got != nil {
		t.Error("entry should expire after its TTL")
	}
}

func TestFetchComputesOnMissAndCaches(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	var computes int32
	compute := func(ctx context.Context) (*envelope.Envelope, error) {
		atomic.AddInt32(&computes, 1)
		return envelope.New(map[string]any{"order_id": "B456"}, "next")
	}

	env, _, fromCache, err := rc.Fetch(ctx, "resp:t:4", "", compute)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fromCache {
		t.Error("first fetch should not be from cache")
	}
	if env.Meta.FromCache {
		t.Error("fresh result should not be marked from_cache")
	}

	env2, _, fromCache2, err := rc.Fetch(ctx, "resp:t:4", "", compute)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !fromCache2 {
		t.Error("second fetch should hit the cache")
	}
	if !env2.Meta.FromCache {
		t.Error("cached result must be marked from_cache")
	}

	if n := atomic.LoadInt32(&computes); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	boom := errors.New("origin down")
	_, _, _, err := rc.Fetch(ctx, "resp:t:5", "", func(ctx context.Context) (*envelope.Envelope, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch error = %v, want %v", err, boom)
	}

	// The failure must not be cached: the next fetch computes again.
	env, _, fromCache, err := rc.Fetch(ctx, "resp:t:5", "", func(ctx context.Context) (*envelope.Envelope, error) {
		return envelope.New(map[string]any{"ok": true}, "next")
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fromCache {
		t.Error("error results must never be cached")
	}
	if env == nil {
		t.Fatal("expected a fresh envelope")
	}
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	var computes int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (*envelope.Envelope, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return envelope.New(map[string]any{"order_id": "B456"}, "next")
	}

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, _, _, err := rc.Fetch(ctx, "resp:t:6", "", compute); err != nil {
				t.Errorf("Fetch failed: %v", err)
			}
		}()
	}

	close(start)
	time.Sleep(20 * time.Millisecond) // let callers pile onto the flight
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&computes); n != 1 {
		t.Errorf("compute ran %d times for concurrent misses, want 1", n)
	}
}

func TestFlushClearsLocalState(t *testing.T) {
	rc := newTestResponseCache()
	ctx := context.Background()

	env := mustEnvelope(t, map[string]any{"order_id": "B456"})
	if err := rc.Store(ctx, "resp:t:7", env, 0); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := rc.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got, _, _ := rc.Check(ctx, "resp:t:7", ""); got != nil {
		t.Error("Flush should clear the local store")
	}

	// Idempotent local effect.
	if err := rc.Flush(ctx); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
}

func TestFetchComputeDetachedFromCallerCancel(t *testing.T) {
	rc := newTestResponseCache()
	ctx, cancel := context.WithCancel(context.Background())

	env, _, fromCache, err := rc.Fetch(ctx, "resp:t:detach", "",
		func(computeCtx context.Context) (*envelope.Envelope, error) {
			// Cancel the initiating caller mid-compute: the shared execution
			// must keep going for any coalesced waiters.
			cancel()
			if err := computeCtx.Err(); err != nil {
				return nil, err
			}
			return envelope.New(map[string]any{"order_id": "B456"}, "next")
		})
	if err != nil {
		t.Fatalf("Fetch failed after caller cancel: %v", err)
	}
	if fromCache {
		t.Error("fresh compute should not report fromCache")
	}
	if env == nil || env.Fields["order_id"] != "B456" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}
