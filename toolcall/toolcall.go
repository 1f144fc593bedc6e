// Package toolcall runs tool invocations through the gate pipeline:
// rate limiting, response caching with conditional checks, idempotent
// write deduplication, and uniform error shaping.
package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/envelope"
	"github.com/jonwraymond/toolgate/idempotency"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/problem"
	"github.com/jonwraymond/toolgate/ratelimit"
	"github.com/jonwraymond/toolgate/validate"
)

// Mode classifies a tool's side effects.
type Mode int

const (
	// ModeRead marks a side-effect-free tool; responses are cacheable.
	ModeRead Mode = iota
	// ModeWrite marks a mutating tool; calls deduplicate by idempotency key
	// and are never cached.
	ModeWrite
)

// RequestMeta carries the caller-controlled call options.
type RequestMeta struct {
	// RequestID identifies the call for tracing. Generated when absent.
	RequestID string
	// IdempotencyKey deduplicates write calls. Ignored for reads.
	IdempotencyKey string
	// IfNoneMatch is the caller's held ETag for conditional reads.
	IfNoneMatch string
	// Cursor and Limit page list tools. Both flow into the cache key.
	Cursor string
	Limit  int
}

// Request is one tool invocation.
type Request struct {
	Tool   string
	Params map[string]any
	Meta   RequestMeta
}

// Result is a successful pipeline outcome: either a full envelope or the
// 304-equivalent conditional short-circuit, never both.
type Result struct {
	Envelope    *envelope.Envelope
	NotModified *envelope.NotModified
}

// HandlerFunc computes a tool's business result. Implementations return
// either a *problem.Error or a plain error; the gate shapes plain errors into
// internal problems.
type HandlerFunc func(ctx context.Context, req Request) (*envelope.Envelope, error)

// Tool registers a handler with the gate.
type Tool struct {
	Name string
	Mode Mode

	// Handler computes the business result.
	Handler HandlerFunc

	// Resource names the entity a write targets, scoping its idempotency
	// keys. Falls back to the tool name when nil or empty.
	Resource func(req Request) string

	// Validate rejects malformed parameters and nonexistent targets. It runs
	// before any rate-limit quota is spent or cache state is touched.
	// Optional.
	Validate func(req Request) *problem.Error
}

// Gate is the pipeline front door. Configure it with options, register
// tools, then Call.
type Gate struct {
	remote    *cache.Remote
	respCache *cache.ResponseCache
	limiter   *ratelimit.Limiter
	burst     *ratelimit.Burst
	idem      *idempotency.Store
	keyer     cache.Keyer
	logger    observe.Logger
	metrics   *observe.Metrics

	tools map[string]Tool

	hits            atomic.Int64
	misses          atomic.Int64
	conditionalHits atomic.Int64
	rejections      atomic.Int64
	replays         atomic.Int64
}

// Option configures a Gate.
type Option func(*gateConfig)

type gateConfig struct {
	remote         *cache.Remote
	logger         observe.Logger
	metrics        *observe.Metrics
	keyer          cache.Keyer
	limit          int
	scope          string
	cacheTTL       time.Duration
	idempotencyTTL time.Duration
	lruCapacity    int
	burst          *ratelimit.Burst
}

// WithRemote backs the gate's cache, rate limiter, and idempotency store
// with the remote facade. Without it every component runs in-process.
func WithRemote(r *cache.Remote) Option {
	return func(c *gateConfig) { c.remote = r }
}

// WithLogger sets the gate's logger.
func WithLogger(l observe.Logger) Option {
	return func(c *gateConfig) { c.logger = l }
}

// WithMetrics sets the gate's metrics recorder.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *gateConfig) { c.metrics = m }
}

// WithKeyer overrides the cache key generator.
func WithKeyer(k cache.Keyer) Option {
	return func(c *gateConfig) { c.keyer = k }
}

// WithRateLimit sets the shared per-minute quota.
func WithRateLimit(limit int) Option {
	return func(c *gateConfig) { c.limit = limit }
}

// WithScope names the rate-limit scope. Default "global".
func WithScope(scope string) Option {
	return func(c *gateConfig) { c.scope = scope }
}

// WithCacheTTL sets the response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *gateConfig) { c.cacheTTL = ttl }
}

// WithIdempotencyTTL bounds idempotency record retention.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(c *gateConfig) { c.idempotencyTTL = ttl }
}

// WithLRUCapacity sizes the in-process fallback stores.
func WithLRUCapacity(capacity int) Option {
	return func(c *gateConfig) { c.lruCapacity = capacity }
}

// WithBurst adds a token-bucket layer in front of the per-minute window.
func WithBurst(b *ratelimit.Burst) Option {
	return func(c *gateConfig) { c.burst = b }
}

// New creates a Gate with the given options.
func New(opts ...Option) *Gate {
	cfg := &gateConfig{
		logger:      observe.NopLogger(),
		lruCapacity: cache.DefaultLRUCapacity,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.metrics == nil {
		cfg.metrics, _ = observe.NewMetrics(nil)
	}
	if cfg.keyer == nil {
		cfg.keyer = cache.NewDefaultKeyer()
	}

	logger := cfg.logger.WithComponent("gate")
	return &Gate{
		remote:    cfg.remote,
		respCache: cache.NewResponseCache(cfg.remote, cfg.lruCapacity, cfg.cacheTTL, cfg.logger),
		limiter:   ratelimit.New(ratelimit.Config{Limit: cfg.limit, Scope: cfg.scope}, cfg.remote, cfg.logger),
		burst:     cfg.burst,
		idem:      idempotency.NewStore(cfg.remote, cfg.lruCapacity, cfg.idempotencyTTL, cfg.logger),
		keyer:     cfg.keyer,
		logger:    logger,
		metrics:   cfg.metrics,
		tools:     make(map[string]Tool),
	}
}

// Register adds a tool to the gate. Registration happens at startup, before
// any Call; it is not synchronized against concurrent calls.
func (g *Gate) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("toolcall: tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("toolcall: tool %q has no handler", t.Name)
	}
	if _, exists := g.tools[t.Name]; exists {
		return fmt.Errorf("toolcall: tool %q already registered", t.Name)
	}
	g.tools[t.Name] = t
	return nil
}

// Call runs one tool invocation through the pipeline. The returned error is
// always a *problem.Error; panics in handlers surface as internal problems,
// never as process crashes.
func (g *Gate) Call(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		g.metrics.RecordCall(ctx, req.Tool, time.Since(start))
		if r := recover(); r != nil {
			g.logger.Error(ctx, "tool call panicked",
				observe.Field{Key: "tool", Value: req.Tool},
				observe.Field{Key: "panic", Value: fmt.Sprint(r)})
			res, err = nil, problem.Internal(req.Tool, fmt.Sprintf("panic: %v", r))
		}
	}()

	tool, ok := g.tools[req.Tool]
	if !ok {
		return nil, problem.NotFound(req.Tool,
			fmt.Sprintf("no tool named %q is registered", req.Tool),
			"Check the tool name against the gate's registered tools.")
	}

	if req.Meta.RequestID == "" {
		req.Meta.RequestID = newRequestID()
	} else if perr := validate.RequestID(req.Tool, req.Meta.RequestID); perr != nil {
		return nil, perr
	}

	// Validation failures must not spend quota or touch cache state, so
	// every check runs before the limiter increments the window.
	if tool.Validate != nil {
		if perr := tool.Validate(req); perr != nil {
			return nil, perr
		}
	}
	if tool.Mode == ModeWrite && req.Meta.IdempotencyKey != "" {
		if perr := validate.IdempotencyKey(req.Tool, req.Meta.IdempotencyKey); perr != nil {
			return nil, perr
		}
	}

	if g.burst != nil && !g.burst.Allow() {
		g.rejections.Add(1)
		g.metrics.RecordRateVerdict(ctx, req.Tool, true)
		return nil, problem.RateLimited(req.Tool, g.limiter.Limit(), 1)
	}

	verdict := g.limiter.Check(ctx)
	g.metrics.RecordRateVerdict(ctx, req.Tool, verdict.Exceeded)
	if verdict.Exceeded {
		g.rejections.Add(1)
		return nil, problem.RateLimited(req.Tool, verdict.Info.Limit, verdict.Info.ResetSeconds)
	}

	if tool.Mode == ModeWrite {
		return g.callWrite(ctx, tool, req, verdict.Info)
	}
	return g.callRead(ctx, tool, req, verdict.Info)
}

// callRead serves a cacheable tool via cache-aside with miss coalescing.
func (g *Gate) callRead(ctx context.Context, tool Tool, req Request, info *envelope.RateLimitInfo) (*Result, error) {
	key, err := g.keyer.Key(req.Tool, keyInput(req))
	if err != nil {
		return nil, problem.Internal(req.Tool, err.Error())
	}

	env, notModified, fromCache, err := g.respCache.Fetch(ctx, key, req.Meta.IfNoneMatch,
		func(ctx context.Context) (*envelope.Envelope, error) {
			return tool.Handler(ctx, req)
		})
	if err != nil {
		return nil, g.toProblem(req.Tool, err)
	}

	if notModified != nil {
		g.conditionalHits.Add(1)
		g.metrics.RecordConditionalHit(ctx, req.Tool)
		notModified.Meta.RateLimit = info
		return &Result{NotModified: notModified}, nil
	}

	if fromCache {
		g.hits.Add(1)
		g.metrics.RecordCacheHit(ctx, req.Tool)
	} else {
		g.misses.Add(1)
		g.metrics.RecordCacheMiss(ctx, req.Tool)
	}
	env.Meta.RateLimit = info
	return &Result{Envelope: env}, nil
}

// callWrite executes a mutating tool, deduplicating by idempotency key when
// the caller supplies one.
func (g *Gate) callWrite(ctx context.Context, tool Tool, req Request, info *envelope.RateLimitInfo) (*Result, error) {
	key := req.Meta.IdempotencyKey
	if key == "" {
		// No key, no dedup: the caller accepts at-least-once semantics.
		env, err := tool.Handler(ctx, req)
		if err != nil {
			return nil, g.toProblem(req.Tool, err)
		}
		env.Meta.RateLimit = info
		return &Result{Envelope: env}, nil
	}

	resource := req.Tool
	if tool.Resource != nil {
		if r := tool.Resource(req); r != "" {
			resource = r
		}
	}

	paramsHash, err := envelope.ETag(req.Params)
	if err != nil {
		return nil, problem.Internal(req.Tool, err.Error())
	}

	if rec, found := g.idem.Lookup(ctx, resource, key); found {
		return g.replay(ctx, req, rec, paramsHash, info)
	}

	env, err := tool.Handler(ctx, req)
	if err != nil {
		// Failures are not recorded: the caller may retry with the same key.
		return nil, g.toProblem(req.Tool, err)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, problem.Internal(req.Tool, err.Error())
	}

	rec := idempotency.NewRecord(key, req.Meta.RequestID, resource, paramsHash, payload)
	winner, inserted := g.idem.Insert(ctx, rec)
	if !inserted && winner.ID != rec.ID {
		// Lost the first-writer race: answer with the winner's result so
		// every holder of this key sees one outcome.
		return g.replay(ctx, req, winner, paramsHash, info)
	}

	env.Meta.RateLimit = info
	return &Result{Envelope: env}, nil
}

// replay answers a deduplicated write from its stored record, or reports a
// conflict when the key is being reused with different parameters.
func (g *Gate) replay(ctx context.Context, req Request, rec *idempotency.Record, paramsHash string, info *envelope.RateLimitInfo) (*Result, error) {
	if rec.ParamsHash != paramsHash {
		return nil, problem.Conflict(req.Tool,
			fmt.Sprintf("idempotency key %q was already used with different parameters", rec.Key),
			"Use a new idempotency key for a new operation, or resend the original parameters.")
	}

	env, err := idempotency.Replay(rec)
	if err != nil {
		return nil, problem.Internal(req.Tool, err.Error())
	}
	g.replays.Add(1)
	g.metrics.RecordReplay(ctx, req.Tool)
	g.logger.Info(ctx, "replayed idempotent write",
		observe.Field{Key: "tool", Value: req.Tool},
		observe.Field{Key: "idempotency_key", Value: rec.Key})

	env.Meta.RateLimit = info
	return &Result{Envelope: env}, nil
}

// Flush clears the response cache, the rate-limit windows, and the
// in-process idempotency records. In-process state clears unconditionally,
// so repeated flushes are idempotent even when the remote flush fails.
func (g *Gate) Flush(ctx context.Context) error {
	g.limiter.Reset()
	g.idem.Clear()
	if err := g.respCache.Flush(ctx); err != nil {
		return fmt.Errorf("toolcall: flush: %w", err)
	}
	return nil
}

// Stats is a point-in-time snapshot of the gate's shape and traffic.
type Stats struct {
	Tools           int   `json:"tools"`
	RemoteEnabled   bool  `json:"remote_enabled"`
	RateLimit       int   `json:"rate_limit"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	ConditionalHits int64 `json:"conditional_hits"`
	RateRejections  int64 `json:"rate_rejections"`
	Replays         int64 `json:"replays"`
}

// Stats reports the gate's current shape and lifetime counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Tools:           len(g.tools),
		RemoteEnabled:   g.remote != nil && g.remote.Enabled(),
		RateLimit:       g.limiter.Limit(),
		CacheHits:       g.hits.Load(),
		CacheMisses:     g.misses.Load(),
		ConditionalHits: g.conditionalHits.Load(),
		RateRejections:  g.rejections.Load(),
		Replays:         g.replays.Load(),
	}
}

// toProblem shapes a handler error into a problem, passing through errors
// that already are one.
func (g *Gate) toProblem(tool string, err error) *problem.Error {
	if pe := problem.As(err); pe != nil {
		return pe
	}
	return problem.Internal(tool, err.Error())
}

// keyInput is the identifying portion of a request for cache keying: the
// business parameters plus paging, which changes the response page.
func keyInput(req Request) map[string]any {
	in := make(map[string]any, len(req.Params)+2)
	for k, v := range req.Params {
		in[k] = v
	}
	if req.Meta.Cursor != "" {
		in["cursor"] = req.Meta.Cursor
	}
	if req.Meta.Limit > 0 {
		in["limit"] = req.Meta.Limit
	}
	return in
}

// newRequestID generates a request identifier of the canonical shape.
func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
