// Package ratelimit provides the gate's fixed-window rate limiter.
//
// Requests are counted per UTC calendar minute. When the remote cache facade
// is enabled the count lives in an atomic remote counter shared across
// processes; otherwise an in-process map holds the active window, purged
// lazily on each call. The limiter never blocks or fails the caller: any
// internal failure yields an "allowed" verdict with default info.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/envelope"
	"github.com/jonwraymond/toolgate/observe"
)

// DefaultLimit is the per-minute quota when none is configured.
const DefaultLimit = 100

// windowTTL bounds remote counter lifetime. Two minutes outlives any window
// that can still be read.
const windowTTL = 2 * time.Minute

// Config configures a Limiter.
type Config struct {
	// Limit is the number of calls allowed per minute. Default: 100.
	// The Limit-th call in a window succeeds; the Limit+1-th is the first
	// rejected one.
	Limit int

	// Scope names the logical quota. All tools behind one gate share one
	// scope; this limiter is deliberately not per-caller.
	Scope string
}

// Result is a rate-limit verdict.
type Result struct {
	Exceeded bool
	Info     *envelope.RateLimitInfo
}

// Limiter is a per-minute fixed-window counter.
type Limiter struct {
	cfg    Config
	remote *cache.Remote
	logger observe.Logger

	mu      sync.Mutex
	windows map[string]int

	now func() time.Time
}

// New creates a Limiter. remote may be nil or disabled; the limiter then
// counts in-process.
func New(cfg Config, remote *cache.Remote, logger observe.Logger) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Scope == "" {
		cfg.Scope = "global"
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Limiter{
		cfg:     cfg,
		remote:  remote,
		logger:  logger.WithComponent("ratelimit"),
		windows: make(map[string]int),
		now:     time.Now,
	}
}

// Check counts this call against the current window and reports the verdict.
// It never returns an error and never blocks the caller: if both the remote
// counter and the fallback fail, the call is allowed with default info.
func (l *Limiter) Check(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(ctx, "rate limit check panicked, allowing call",
				observe.Field{Key: "panic", Value: fmt.Sprint(r)})
			result = Result{Exceeded: false, Info: l.defaultInfo()}
		}
	}()

	now := l.now().UTC()
	window := windowKey(now)
	reset := secondsUntilNextMinute(now)

	count, ok := l.remoteCount(ctx, window)
	if !ok {
		count = l.localCount(window)
	}

	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Exceeded: count > l.cfg.Limit,
		Info: &envelope.RateLimitInfo{
			Limit:        l.cfg.Limit,
			Remaining:    remaining,
			ResetSeconds: reset,
		},
	}
}

// Limit reports the configured per-minute quota.
func (l *Limiter) Limit() int {
	return l.cfg.Limit
}

// Reset discards all in-process window state. Called on gate flush so
// repeated flushes have an idempotent local effect.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.windows = make(map[string]int)
	l.mu.Unlock()
}

// remoteCount increments the shared window counter. ok is false when the
// remote path cannot serve this call and the fallback should count instead.
func (l *Limiter) remoteCount(ctx context.Context, window string) (int, bool) {
	if l.remote == nil || !l.remote.Enabled() {
		return 0, false
	}

	key := fmt.Sprintf("rate_limit:%s:%s", l.cfg.Scope, window)
	count, err := l.remote.Increment(ctx, key, windowTTL)
	if err != nil {
		l.logger.Warn(ctx, "remote rate limit increment failed, counting locally",
			observe.Field{Key: "error", Value: err.Error()})
		return 0, false
	}
	return int(count), true
}

// localCount increments the in-process window counter, lazily purging stale
// windows.
func (l *Limiter) localCount(window string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k := range l.windows {
		if k != window {
			delete(l.windows, k)
		}
	}

	l.windows[window]++
	return l.windows[window]
}

// defaultInfo is the verdict info used when the check itself failed. It must
// not touch any state that could have caused the failure.
func (l *Limiter) defaultInfo() *envelope.RateLimitInfo {
	return &envelope.RateLimitInfo{
		Limit:        l.cfg.Limit,
		Remaining:    l.cfg.Limit,
		ResetSeconds: 60,
	}
}

// windowKey buckets a time into its UTC calendar minute.
func windowKey(t time.Time) string {
	return t.Format("2006-01-02-15-04")
}

// secondsUntilNextMinute is the window's reset time, never negative.
func secondsUntilNextMinute(t time.Time) int {
	next := t.Truncate(time.Minute).Add(time.Minute)
	seconds := int(next.Sub(t).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
