// Package observe provides the gate's observability primitives: a minimal
// structured logger and OpenTelemetry metrics for cache, rate-limit, and
// idempotency activity.
//
// It is a pure instrumentation layer: no execution, no transport. The demo
// server owns meter provider setup; the library defaults to a noop meter.
package observe
