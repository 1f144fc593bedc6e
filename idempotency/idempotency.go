// Package idempotency deduplicates write operations by caller-supplied key.
//
// The first successful execution of a write records its result; any later
// call bearing the same idempotency key for the same resource gets the
// stored result back verbatim, flagged as a replay, with no recomputation
// and no duplicate side effects. A reused key whose parameters differ from
// the recorded call is a conflict, not a replay.
//
// Records live in the remote cache when it is enabled (insert-if-absent via
// the facade's atomic SetNX, so concurrent first writers resolve to one
// winner) and otherwise in a mutex-serialized in-process LRU. Retention is
// bounded by a TTL in both paths.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/envelope"
	"github.com/jonwraymond/toolgate/observe"
)

// DefaultTTL bounds record retention when none is configured.
const DefaultTTL = 24 * time.Hour

// Record is a stored idempotency result.
type Record struct {
	ID         string          `json:"id"`
	Key        string          `json:"idempotency_key"`
	RequestID  string          `json:"request_id"`
	Resource   string          `json:"resource"`
	ParamsHash string          `json:"params_hash"`
	Result     json.RawMessage `json:"result"`
	Timestamp  string          `json:"timestamp"`
}

// NewRecord builds a record for a completed write. result is the flattened
// envelope JSON; paramsHash fingerprints the request parameters for conflict
// detection.
func NewRecord(key, requestID, resource, paramsHash string, result json.RawMessage) Record {
	return Record{
		ID:         uuid.NewString(),
		Key:        key,
		RequestID:  requestID,
		Resource:   resource,
		ParamsHash: paramsHash,
		Result:     result,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// localRecord carries the fallback store's expiry alongside the record.
type localRecord struct {
	record    Record
	expiresAt time.Time
}

// Store holds idempotency records.
//
// Contract:
// - A recorded key deterministically returns the same result for the
//   retention window; records are never recomputed or overwritten.
// - Concurrency: safe for concurrent use; the in-process path serializes
//   check-then-write under one mutex.
type Store struct {
	remote *cache.Remote
	ttl    time.Duration
	logger observe.Logger

	mu    sync.Mutex
	local *cache.LRU[localRecord]

	now func() time.Time
}

// NewStore creates a Store. remote may be nil or disabled; records then live
// in an in-process LRU of the given capacity. ttl <= 0 uses DefaultTTL.
func NewStore(remote *cache.Remote, capacity int, ttl time.Duration, logger observe.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Store{
		remote: remote,
		ttl:    ttl,
		logger: logger.WithComponent("idempotency"),
		local:  cache.NewLRU[localRecord](capacity),
		now:    time.Now,
	}
}

// storeKey scopes a record to its target resource.
func storeKey(resource, key string) string {
	return "idem:" + resource + ":" + key
}

// Lookup returns the record for (resource, key) if one exists.
func (s *Store) Lookup(ctx context.Context, resource, key string) (*Record, bool) {
	if s.remote != nil && s.remote.Enabled() {
		payload, err := s.remote.Get(ctx, storeKey(resource, key))
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				s.logger.Warn(ctx, "idempotency lookup degraded to miss",
					observe.Field{Key: "key", Value: key},
					observe.Field{Key: "error", Value: err.Error()})
			}
			return nil, false
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, false
		}
		return &rec, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localLookupLocked(resource, key)
}

func (s *Store) localLookupLocked(resource, key string) (*Record, bool) {
	entry, ok := s.local.Get(storeKey(resource, key))
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.local.Delete(storeKey(resource, key))
		return nil, false
	}
	rec := entry.record
	return &rec, true
}

// Insert records rec unless a record already exists for its (resource, key).
// The returned record is the one that now holds the key: rec itself when
// this call won, or the earlier winner when it lost the race. inserted
// reports which.
func (s *Store) Insert(ctx context.Context, rec Record) (winner *Record, inserted bool) {
	if s.remote != nil && s.remote.Enabled() {
		payload, err := json.Marshal(rec)
		if err != nil {
			return &rec, false
		}

		ok, err := s.remote.SetNX(ctx, storeKey(rec.Resource, rec.Key), payload, s.ttl)
		if err != nil {
			// Degraded: the result still goes back to the caller; only the
			// dedup record is lost.
			s.logger.Warn(ctx, "idempotency record write failed",
				observe.Field{Key: "key", Value: rec.Key},
				observe.Field{Key: "error", Value: err.Error()})
			return &rec, false
		}
		if ok {
			return &rec, true
		}
		if existing, found := s.Lookup(ctx, rec.Resource, rec.Key); found {
			return existing, false
		}
		return &rec, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, found := s.localLookupLocked(rec.Resource, rec.Key); found {
		return existing, false
	}
	s.local.Set(storeKey(rec.Resource, rec.Key), localRecord{
		record:    rec,
		expiresAt: s.now().Add(s.ttl),
	})
	return &rec, true
}

// Clear discards all in-process records. Called on gate flush.
func (s *Store) Clear() {
	s.mu.Lock()
	s.local.Clear()
	s.mu.Unlock()
}

// Replay converts a stored record back into a response envelope, flagged as
// an idempotent replay served from cache. The business fields come back
// byte-identical to the recorded result.
func Replay(rec *Record) (*envelope.Envelope, error) {
	var env envelope.Envelope
	if err := json.Unmarshal(rec.Result, &env); err != nil {
		return nil, err
	}
	env.Meta.FromCache = true
	env.Meta.IdempotentResponse = true
	return &env, nil
}
