package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.CacheEnabled() {
		t.Error("cache should be disabled when TOOLGATE_CACHE_ADDR is unset")
	}
	if cfg.Namespace != "toolgate" {
		t.Errorf("Namespace = %q, want toolgate", cfg.Namespace)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %s, want 300s", cfg.CacheTTL)
	}
	if cfg.RateLimit != 100 {
		t.Errorf("RateLimit = %d, want 100", cfg.RateLimit)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %s, want 24h", cfg.IdempotencyTTL)
	}
	if cfg.LRUCapacity != 1000 {
		t.Errorf("LRUCapacity = %d, want 1000", cfg.LRUCapacity)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TOOLGATE_CACHE_ADDR", "localhost:6379")
	t.Setenv("TOOLGATE_RATE_LIMIT", "5")
	t.Setenv("TOOLGATE_CACHE_TTL", "30s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if !cfg.CacheEnabled() {
		t.Error("cache should be enabled when TOOLGATE_CACHE_ADDR is set")
	}
	if cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %d, want 5", cfg.RateLimit)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %s, want 30s", cfg.CacheTTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }},
		{"negative capacity", func(c *Config) { c.LRUCapacity = -1 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"zero idempotency ttl", func(c *Config) { c.IdempotencyTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				RateLimit:      100,
				LRUCapacity:    1000,
				CacheTTL:       300 * time.Second,
				IdempotencyTTL: 24 * time.Hour,
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
