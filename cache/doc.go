// Package cache provides the gate's caching layer: a fixed-capacity LRU used
// as the in-process fallback, a remote cache facade with explicit
// degradation semantics, deterministic key derivation, and a cache-aside
// response cache with ETag-based conditional checks.
package cache
