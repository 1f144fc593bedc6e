package cache

import (
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	// ErrNotEnabled is returned when the remote cache has no credential
	// configured. It is a permanent condition for the process lifetime.
	ErrNotEnabled = errors.New("cache: remote cache not enabled")

	// ErrUnavailable is returned when a remote call failed in transport.
	// Callers decide the fallback; the facade never hides the failure.
	ErrUnavailable = errors.New("cache: remote cache unavailable")

	// ErrMiss is returned by Get when the key is absent.
	ErrMiss = errors.New("cache: key not found")

	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
