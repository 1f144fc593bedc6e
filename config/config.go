// Package config loads gate configuration from environment variables.
//
// The remote cache is enabled solely by the presence of TOOLGATE_CACHE_ADDR;
// when it is absent the gate degrades to in-process fallbacks and never
// treats the missing value as an error.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the gate and demo server consume.
type Config struct {
	// CacheAddr is the remote cache address. Empty means the remote cache
	// is disabled and all components use their in-process fallbacks.
	CacheAddr     string `env:"TOOLGATE_CACHE_ADDR"`
	CachePassword string `env:"TOOLGATE_CACHE_PASSWORD"`
	CacheDB       int    `env:"TOOLGATE_CACHE_DB" envDefault:"0"`

	// Namespace prefixes every remote cache key.
	Namespace string `env:"TOOLGATE_NAMESPACE" envDefault:"toolgate"`

	// CacheTTL is the default TTL for cached responses.
	CacheTTL time.Duration `env:"TOOLGATE_CACHE_TTL" envDefault:"300s"`

	// RateLimit is the per-minute request quota shared by the gate's scope.
	RateLimit int `env:"TOOLGATE_RATE_LIMIT" envDefault:"100"`

	// IdempotencyTTL bounds idempotency record retention.
	IdempotencyTTL time.Duration `env:"TOOLGATE_IDEMPOTENCY_TTL" envDefault:"24h"`

	// LRUCapacity sizes the in-process fallback cache.
	LRUCapacity int `env:"TOOLGATE_LRU_CAPACITY" envDefault:"1000"`

	LogLevel string `env:"TOOLGATE_LOG_LEVEL" envDefault:"info"`

	// Metrics selects the metric exporter: none|stdout.
	Metrics string `env:"TOOLGATE_METRICS" envDefault:"none"`

	ListenAddr string `env:"TOOLGATE_LISTEN_ADDR" envDefault:":8080"`
}

// FromEnv parses configuration from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the gate cannot operate with. Absence of the cache
// address is not an error.
func (c Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("config: rate limit must be positive, got %d", c.RateLimit)
	}
	if c.LRUCapacity <= 0 {
		return fmt.Errorf("config: LRU capacity must be positive, got %d", c.LRUCapacity)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("config: idempotency TTL must be positive, got %s", c.IdempotencyTTL)
	}
	return nil
}

// CacheEnabled reports whether the remote cache credential is present.
func (c Config) CacheEnabled() bool {
	return c.CacheAddr != ""
}
