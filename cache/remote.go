package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/toolgate/observe"
)

// RemoteConfig configures the remote cache facade.
type RemoteConfig struct {
	// Addr is the remote cache address. Empty disables the facade: every
	// operation returns ErrNotEnabled and no connection is attempted.
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key written by this facade.
	Namespace string

	// DialTimeout bounds connection establishment. Default: 5s.
	DialTimeout time.Duration
}

// Remote wraps a remote cache behind graceful-degradation semantics.
//
// Contract:
// - Enablement: decided once at construction from the presence of Addr; a
//   missing credential is never an error, only a warning log.
// - Degradation: transport failures surface as ErrUnavailable (wrapped);
//   the caller chooses the fallback rather than the facade hiding it.
// - Concurrency: safe for concurrent use.
type Remote struct {
	client    *redis.Client
	namespace string
	logger    observe.Logger
}

// NewRemote creates the facade. With an empty Addr the facade is permanently
// disabled and all operations degrade.
func NewRemote(cfg RemoteConfig, logger observe.Logger) *Remote {
	if logger == nil {
		logger = observe.NopLogger()
	}
	logger = logger.WithComponent("cache.remote")

	r := &Remote{namespace: cfg.Namespace, logger: logger}

	if cfg.Addr == "" {
		logger.Warn(context.Background(), "remote cache disabled: no address configured")
		return r
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})
	return r
}

// Enabled reports whether the facade has a configured backend.
func (r *Remote) Enabled() bool {
	return r.client != nil
}

// key applies the facade's namespace.
func (r *Remote) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

// Get retrieves a value. Returns ErrNotEnabled when disabled, ErrMiss when
// the key is absent, and ErrUnavailable on transport failure.
func (r *Remote) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.Enabled() {
		return nil, ErrNotEnabled
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, r.degrade(ctx, "get", err)
	}
	return val, nil
}

// Set stores a value with the given TTL. TTL <= 0 means no caching.
func (r *Remote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.Enabled() {
		return ErrNotEnabled
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return r.degrade(ctx, "set", err)
	}
	return nil
}

// SetNX stores a value only if the key is absent, reporting whether this
// call inserted it. This is the atomic insert-if-absent used for idempotency
// records.
func (r *Remote) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !r.Enabled() {
		return false, ErrNotEnabled
	}
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	inserted, err := r.client.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		return false, r.degrade(ctx, "setnx", err)
	}
	return inserted, nil
}

// Increment atomically increments a counter, setting its expiry when the
// counter is created. Returns the post-increment count.
func (r *Remote) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !r.Enabled() {
		return 0, ErrNotEnabled
	}
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	count, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return 0, r.degrade(ctx, "incr", err)
	}
	if count == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, r.key(key), ttl).Err(); err != nil {
			// The counter still works; it just lives longer than one window.
			r.logger.Warn(ctx, "failed to set counter expiry",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
	return count, nil
}

// Flush removes every key under the facade's namespace. Local fallback state
// is cleared by the gate, not here, so repeated flushes stay idempotent in
// their local effect regardless of the remote outcome.
func (r *Remote) Flush(ctx context.Context) error {
	if !r.Enabled() {
		return ErrNotEnabled
	}

	pattern := r.key("*")
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return r.degrade(ctx, "flush", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return r.degrade(ctx, "flush", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return r.degrade(ctx, "flush", err)
		}
	}
	return nil
}

// degrade classifies a remote failure and wraps it as ErrUnavailable.
func (r *Remote) degrade(ctx context.Context, op string, err error) error {
	r.logger.Warn(ctx, "remote cache operation failed",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "error", Value: err.Error()})
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// IsTransportError reports whether err looks like a connectivity problem
// rather than an application error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) && !errors.Is(err, redis.Nil) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
