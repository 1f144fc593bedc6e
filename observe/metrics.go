package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records gate activity: cache traffic, rate-limit verdicts,
// idempotent replays, and call durations.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic and must return quickly.
type Metrics struct {
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	conditionalHits metric.Int64Counter
	rateAllowed     metric.Int64Counter
	rateRejected    metric.Int64Counter
	replays         metric.Int64Counter
	callDuration    metric.Float64Histogram
}

// NewMetrics creates Metrics on the given meter. A nil meter yields a noop
// instance.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("toolgate")
	}

	cacheHits, err := meter.Int64Counter(
		"gate.cache.hits",
		metric.WithDescription("Responses served from the cache"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"gate.cache.misses",
		metric.WithDescription("Cache checks that required a fresh compute"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	conditionalHits, err := meter.Int64Counter(
		"gate.cache.conditional_hits",
		metric.WithDescription("Conditional checks short-circuited by an ETag match"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	rateAllowed, err := meter.Int64Counter(
		"gate.ratelimit.allowed",
		metric.WithDescription("Calls admitted by the rate limiter"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	rateRejected, err := meter.Int64Counter(
		"gate.ratelimit.rejected",
		metric.WithDescription("Calls rejected by the rate limiter"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	replays, err := meter.Int64Counter(
		"gate.idempotency.replays",
		metric.WithDescription("Write calls answered from an idempotency record"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	callDuration, err := meter.Float64Histogram(
		"gate.call.duration_ms",
		metric.WithDescription("Tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		conditionalHits: conditionalHits,
		rateAllowed:     rateAllowed,
		rateRejected:    rateRejected,
		replays:         replays,
		callDuration:    callDuration,
	}, nil
}

func toolAttrs(tool string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tool.name", tool))
}

// RecordCacheHit counts a response served from cache for the given tool.
func (m *Metrics) RecordCacheHit(ctx context.Context, tool string) {
	m.cacheHits.Add(ctx, 1, toolAttrs(tool))
}

// RecordCacheMiss counts a cache check that fell through to a compute.
func (m *Metrics) RecordCacheMiss(ctx context.Context, tool string) {
	m.cacheMisses.Add(ctx, 1, toolAttrs(tool))
}

// RecordConditionalHit counts an ETag-matched 304-equivalent result.
func (m *Metrics) RecordConditionalHit(ctx context.Context, tool string) {
	m.conditionalHits.Add(ctx, 1, toolAttrs(tool))
}

// RecordRateVerdict counts a rate-limiter decision.
func (m *Metrics) RecordRateVerdict(ctx context.Context, tool string, exceeded bool) {
	if exceeded {
		m.rateRejected.Add(ctx, 1, toolAttrs(tool))
		return
	}
	m.rateAllowed.Add(ctx, 1, toolAttrs(tool))
}

// RecordReplay counts an idempotent replay.
func (m *Metrics) RecordReplay(ctx context.Context, tool string) {
	m.replays.Add(ctx, 1, toolAttrs(tool))
}

// RecordCall records a completed call's duration.
func (m *Metrics) RecordCall(ctx context.Context, tool string, duration time.Duration) {
	m.callDuration.Record(ctx, float64(duration.Milliseconds()), toolAttrs(tool))
}
