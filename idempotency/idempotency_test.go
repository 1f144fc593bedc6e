package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func testRecord(key string) Record {
	return NewRecord(key, "req_abc123", "B456", "hash1",
		json.RawMessage(`{"order_id":"B456","status":"expedited","meta":{"etag":"\"aa\""}}`))
}

func TestInsertThenLookup(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)
	ctx := context.Background()

	rec := testRecord("exp_B456_001")
	winner, inserted := s.Insert(ctx, rec)
	if !inserted {
		t.Fatal("first insert should win")
	}
	if winner.ID != rec.ID {
		t.Errorf("winner.ID = %q, want %q", winner.ID, rec.ID)
	}

	got, found := s.Lookup(ctx, "B456", "exp_B456_001")
	if !found {
		t.Fatal("recorded key should be found")
	}
	if !bytes.Equal(got.Result, rec.Result) {
		t.Errorf("Result = %s, want %s", got.Result, rec.Result)
	}
}

func TestInsertLosesToExistingRecord(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)
	ctx := context.Background()

	first := testRecord("exp_B456_001")
	s.Insert(ctx, first)

	second := testRecord("exp_B456_001")
	winner, inserted := s.Insert(ctx, second)
	if inserted {
		t.Fatal("second insert for the same key must lose")
	}
	if winner.ID != first.ID {
		t.Errorf("winner.ID = %q, want the first record %q", winner.ID, first.ID)
	}
}

func TestLookupMiss(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)

	if _, found := s.Lookup(context.Background(), "B456", "exp_B456_999"); found {
		t.Error("unknown key should miss")
	}
}

func TestKeysAreScopedByResource(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)
	ctx := context.Background()

	s.Insert(ctx, testRecord("exp_B456_001"))

	if _, found := s.Lookup(ctx, "C789", "exp_B456_001"); found {
		t.Error("a key recorded for one resource must not match another")
	}
}

func TestRecordsExpire(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)
	ctx := context.Background()

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Insert(ctx, testRecord("exp_B456_001"))

	s.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	if _, found := s.Lookup(ctx, "B456", "exp_B456_001"); found {
		t.Error("record past its TTL should miss")
	}

	// The slot is free again.
	if _, inserted := s.Insert(ctx, testRecord("exp_B456_001")); !inserted {
		t.Error("insert after expiry should win")
	}
}

func TestConcurrentInsertOneWinner(t *testing.T) {
	s := NewStore(nil, 64, time.Hour, nil)
	ctx := context.Background()

	const goroutines = 16
	wins := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, inserted := s.Insert(ctx, testRecord("exp_B456_001")); inserted {
				wins <- "won"
			}
		}()
	}
	wg.Wait()
	close(wins)

	if n := len(wins); n != 1 {
		t.Errorf("exactly one insert should win, got %d", n)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(nil, 16, time.Hour, nil)
	ctx := context.Background()

	s.Insert(ctx, testRecord("exp_B456_001"))
	s.Clear()

	if _, found := s.Lookup(ctx, "B456", "exp_B456_001"); found {
		t.Error("Clear should drop all records")
	}
}

func TestReplayFlagsAndBytes(t *testing.T) {
	rec := testRecord("exp_B456_001")

	env, err := Replay(&rec)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !env.Meta.FromCache {
		t.Error("replay must set from_cache")
	}
	if !env.Meta.IdempotentResponse {
		t.Error("replay must set idempotent_response")
	}
	if env.Fields["order_id"] != "B456" {
		t.Errorf("order_id = %v, want B456", env.Fields["order_id"])
	}
	if env.Fields["status"] != "expedited" {
		t.Errorf("status = %v, want expedited", env.Fields["status"])
	}
}

func TestReplayRejectsCorruptRecord(t *testing.T) {
	rec := Record{Result: json.RawMessage(`{not json`)}
	if _, err := Replay(&rec); err == nil {
		t.Error("corrupt stored result should be an error")
	}
}

func TestNewRecordFields(t *testing.T) {
	rec := NewRecord("exp_B456_001", "req_abc123", "B456", "h", json.RawMessage(`{}`))

	if rec.ID == "" {
		t.Error("ID should be generated")
	}
	if rec.Key != "exp_B456_001" || rec.Resource != "B456" {
		t.Errorf("key/resource = %q/%q", rec.Key, rec.Resource)
	}
	if _, err := time.Parse(time.RFC3339, rec.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", rec.Timestamp, err)
	}
}
