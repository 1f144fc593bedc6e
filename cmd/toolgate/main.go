// Command toolgate runs the demo gate as an HTTP server: the shipping tools
// behind rate limiting, response caching, and idempotent write deduplication.
//
// Tool calls are POSTed to /tools/{name} with a JSON body of the form
// {"params": {...}, "meta": {...}}. Admin endpoints expose a cache flush and
// a stats snapshot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/config"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/problem"
	"github.com/jonwraymond/toolgate/ratelimit"
	"github.com/jonwraymond/toolgate/shipping"
	"github.com/jonwraymond/toolgate/toolcall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "toolgate:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger := observe.NewLogger(cfg.LogLevel)

	meter, shutdown, err := newMeter(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	metrics, err := observe.NewMetrics(meter)
	if err != nil {
		return err
	}

	remote := cache.NewRemote(cache.RemoteConfig{
		Addr:      cfg.CacheAddr,
		Password:  cfg.CachePassword,
		DB:        cfg.CacheDB,
		Namespace: cfg.Namespace,
	}, logger)

	gate := toolcall.New(
		toolcall.WithRemote(remote),
		toolcall.WithLogger(logger),
		toolcall.WithMetrics(metrics),
		toolcall.WithRateLimit(cfg.RateLimit),
		toolcall.WithCacheTTL(cfg.CacheTTL),
		toolcall.WithIdempotencyTTL(cfg.IdempotencyTTL),
		toolcall.WithLRUCapacity(cfg.LRUCapacity),
		toolcall.WithBurst(ratelimit.NewBurst(0, 0)),
	)
	if err := shipping.Register(gate, shipping.NewStore()); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/{name}", handleToolCall(gate, logger))
	mux.HandleFunc("POST /admin/flush", handleFlush(gate, logger))
	mux.HandleFunc("GET /admin/stats", handleStats(gate))
	mux.HandleFunc("GET /healthz", health.Handler(health.NewAggregator(health.NewCacheChecker(remote))))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening",
			observe.Field{Key: "addr", Value: cfg.ListenAddr},
			observe.Field{Key: "cache_enabled", Value: cfg.CacheEnabled()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newMeter builds the configured metric pipeline. "none" yields no meter and
// Metrics falls back to its noop instance.
func newMeter(ctx context.Context, cfg config.Config) (metric.Meter, func(), error) {
	if cfg.Metrics != "stdout" {
		return nil, func() {}, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}
	return provider.Meter("toolgate"), shutdown, nil
}

// callBody is the wire shape of a tool call request.
type callBody struct {
	Params map[string]any `json:"params"`
	Meta   struct {
		RequestID      string `json:"request_id"`
		IdempotencyKey string `json:"idempotency_key"`
		IfNoneMatch    string `json:"if_none_match"`
		Cursor         string `json:"cursor"`
		Limit          int    `json:"limit"`
	} `json:"meta"`
}

func handleToolCall(gate *toolcall.Gate, logger observe.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tool := r.PathValue("name")

		var body callBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, problem.Validation(tool,
				"request body is not valid JSON",
				"Send {\"params\": {...}, \"meta\": {...}}."))
			return
		}

		res, err := gate.Call(r.Context(), toolcall.Request{
			Tool:   tool,
			Params: body.Params,
			Meta: toolcall.RequestMeta{
				RequestID:      body.Meta.RequestID,
				IdempotencyKey: body.Meta.IdempotencyKey,
				IfNoneMatch:    body.Meta.IfNoneMatch,
				Cursor:         body.Meta.Cursor,
				Limit:          body.Meta.Limit,
			},
		})
		if err != nil {
			pe := problem.As(err)
			if pe == nil {
				pe = problem.Internal(tool, err.Error())
			}
			writeProblem(w, pe)
			return
		}

		if res.NotModified != nil {
			w.Header().Set("ETag", res.NotModified.Meta.ETag)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", res.Envelope.Meta.ETag)
		if err := json.NewEncoder(w).Encode(res.Envelope); err != nil {
			logger.Warn(r.Context(), "response write failed",
				observe.Field{Key: "tool", Value: tool},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
}

func handleFlush(gate *toolcall.Gate, logger observe.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := gate.Flush(r.Context()); err != nil {
			logger.Warn(r.Context(), "flush failed",
				observe.Field{Key: "error", Value: err.Error()})
			writeProblem(w, problem.Internal("flush", err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"flushed":true}`)
	}
}

func handleStats(gate *toolcall.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gate.Stats())
	}
}

func writeProblem(w http.ResponseWriter, pe *problem.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pe.Status)
	_ = json.NewEncoder(w).Encode(pe)
}
