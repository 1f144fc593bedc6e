package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolgate/envelope"
	"github.com/jonwraymond/toolgate/observe"
)

// DefaultTTL is the response cache TTL when none is configured.
const DefaultTTL = 300 * time.Second

// localEntry is a cached response in the in-process fallback store. The LRU
// itself has no TTL, so expiry travels with the entry and is checked lazily
// on read.
type localEntry struct {
	payload   []byte
	expiresAt time.Time
}

// ResponseCache implements the cache-aside pattern for tool responses: the
// caller checks for a cached envelope, computes on miss, and writes the
// result back with a TTL. Conditional checks with a matching ETag
// short-circuit to a 304-equivalent result carrying only meta.
//
// Storage is the remote facade when enabled, otherwise a fixed-capacity LRU.
// Remote transport failures are logged and treated as misses; the caller
// always gets an answer.
type ResponseCache struct {
	remote *Remote
	local  *LRU[localEntry]
	ttl    time.Duration
	logger observe.Logger
	group  singleflight.Group

	now func() time.Time
}

// NewResponseCache creates a response cache backed by remote (which may be
// disabled) with an LRU fallback of the given capacity. ttl <= 0 uses
// DefaultTTL.
func NewResponseCache(remote *Remote, capacity int, ttl time.Duration, logger observe.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &ResponseCache{
		remote: remote,
		local:  NewLRU[localEntry](capacity),
		ttl:    ttl,
		logger: logger.WithComponent("cache.response"),
		now:    time.Now,
	}
}

// Check looks up a cached response for key.
//
// Results:
//   - miss (nil, nil, nil): disabled cache, absent key, or expired entry;
//     the caller must compute fresh.
//   - conditional hit: ifNoneMatch equals the stored ETag; only meta is
//     returned, no business payload.
//   - hit: the full stored envelope with Meta.FromCache forced to true.
func (c *ResponseCache) Check(ctx context.Context, key, ifNoneMatch string) (*envelope.Envelope, *envelope.NotModified, error) {
	payload, ok := c.load(ctx, key)
	if !ok {
		return nil, nil, nil
	}

	var env envelope.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// A corrupt entry is unreadable; treat as a miss and recompute.
		c.logger.Warn(ctx, "dropping corrupt cache entry",
			observe.Field{Key: "key", Value: key})
		c.local.Delete(key)
		return nil, nil, nil
	}

	if ifNoneMatch != "" && envelope.ETagMatch(ifNoneMatch, env.Meta.ETag) {
		return nil, envelope.NewNotModified(env.Meta), nil
	}

	env.Meta.FromCache = true
	return &env, nil, nil
}

// Store writes a computed response under key. ttl <= 0 uses the cache's
// configured TTL. Expiry is enforced by the backing store (remote TTL, or
// the lazy expiry check on the LRU path).
func (c *ResponseCache) Store(ctx context.Context, key string, env *envelope.Envelope, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if c.remote != nil && c.remote.Enabled() {
		if err := c.remote.Set(ctx, key, payload, ttl); err != nil {
			return err
		}
		return nil
	}

	c.local.Set(key, localEntry{payload: payload, expiresAt: c.now().Add(ttl)})
	return nil
}

// Fetch is cache-aside with miss coalescing: Check, and on miss run compute
// once per key (concurrent misses share one execution), storing the result.
// fromCache reports whether the envelope came from the cache.
func (c *ResponseCache) Fetch(
	ctx context.Context,
	key, ifNoneMatch string,
	compute func(ctx context.Context) (*envelope.Envelope, error),
) (env *envelope.Envelope, notModified *envelope.NotModified, fromCache bool, err error) {
	env, notModified, err = c.Check(ctx, key, ifNoneMatch)
	if err != nil {
		return nil, nil, false, err
	}
	if notModified != nil {
		return nil, notModified, true, nil
	}
	if env != nil {
		return env, nil, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Coalesced waiters share this one execution; it must outlive the
		// initiating caller's cancellation.
		fresh, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if storeErr := c.Store(ctx, key, fresh, 0); storeErr != nil {
			// A failed write only costs the next caller a recompute.
			c.logger.Warn(ctx, "cache write failed",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: storeErr.Error()})
		}
		return fresh, nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	// Copy so concurrent callers do not share mutable meta.
	shared := v.(*envelope.Envelope)
	fresh := *shared
	return &fresh, nil, false, nil
}

// Flush clears the local fallback store and, when enabled, the remote
// namespace. The local clear happens unconditionally so repeated flushes are
// idempotent in their local effect.
func (c *ResponseCache) Flush(ctx context.Context) error {
	c.local.Clear()
	if c.remote != nil && c.remote.Enabled() {
		if err := c.remote.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// load fetches raw payload bytes for key, preferring the remote store.
func (c *ResponseCache) load(ctx context.Context, key string) ([]byte, bool) {
	if c.remote != nil && c.remote.Enabled() {
		payload, err := c.remote.Get(ctx, key)
		if err == nil {
			return payload, true
		}
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn(ctx, "remote cache check degraded to miss",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()})
		}
		return nil, false
	}

	entry, ok := c.local.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.local.Delete(key)
		return nil, false
	}
	return entry.payload, true
}
