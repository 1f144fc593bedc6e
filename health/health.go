// Package health reports the gate's readiness. The remote cache being down
// is never fatal to the gate, so its checks distinguish degraded (serving
// from in-process fallbacks) from unhealthy.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/toolgate/cache"
)

// Status is a component's health state.
type Status int

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded means the component works on a fallback path.
	StatusDegraded
	// StatusUnhealthy means the component cannot serve.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one check's outcome.
type Result struct {
	Status  Status
	Message string
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string                     { return f.name }
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// CacheChecker probes the remote cache facade.
//
// A disabled or unreachable cache reports degraded, not unhealthy: every
// gate component keeps serving from its in-process fallback.
type CacheChecker struct {
	remote *cache.Remote
}

// NewCacheChecker creates a checker for the given facade.
func NewCacheChecker(remote *cache.Remote) *CacheChecker {
	return &CacheChecker{remote: remote}
}

func (c *CacheChecker) Name() string { return "remote_cache" }

// Check probes the cache with a read. A miss counts as reachable.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if c.remote == nil || !c.remote.Enabled() {
		return Result{Status: StatusDegraded, Message: "remote cache disabled; using in-process fallbacks"}
	}

	_, err := c.remote.Get(ctx, "health:probe")
	if err == nil || errors.Is(err, cache.ErrMiss) {
		return Result{Status: StatusHealthy, Message: "remote cache reachable"}
	}
	return Result{Status: StatusDegraded, Message: "remote cache unreachable; using in-process fallbacks"}
}

// Aggregator runs a set of checkers and folds their results into an overall
// status: the worst individual status wins.
type Aggregator struct {
	checkers []Checker
}

// NewAggregator creates an aggregator over the given checkers.
func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{checkers: checkers}
}

// CheckAll runs every checker.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	results := make(map[string]Result, len(a.checkers))
	for _, c := range a.checkers {
		results[c.Name()] = c.Check(ctx)
	}
	return results
}

// OverallStatus folds results into one status.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		if r.Status > overall {
			overall = r.Status
		}
	}
	return overall
}

// response is the wire shape of the health endpoint.
type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves a JSON health report. Healthy and degraded both answer 200
// since the gate serves either way; only unhealthy answers 503.
func Handler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		results := agg.CheckAll(ctx)
		overall := agg.OverallStatus(results)

		resp := response{
			Status: overall.String(),
			Checks: make(map[string]string, len(results)),
		}
		for name, res := range results {
			resp.Checks[name] = res.Status.String()
		}

		w.Header().Set("Content-Type", "application/json")
		if overall == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
