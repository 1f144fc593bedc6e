package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	logger.Info(ctx, "cache degraded",
		Field{Key: "reason", Value: "no credential"},
		Field{Key: "component", Value: "cache"},
	)

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	if entry["msg"] != "cache degraded" {
		t.Errorf("msg = %v, want 'cache degraded'", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["reason"] != "no credential" {
		t.Errorf("reason = %v, want 'no credential'", entry["reason"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp should be set")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d log lines, want 2: %q", len(lines), buf.String())
	}
}

func TestLoggerRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "configured",
		Field{Key: "api_key", Value: "super-secret"},
		Field{Key: "addr", Value: "localhost:6379"},
	)

	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Error("api_key value leaked into the log output")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("redacted marker missing")
	}
	if !strings.Contains(out, "localhost:6379") {
		t.Error("non-sensitive field should not be redacted")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithComponent("ratelimit")

	logger.Info(context.Background(), "window reset")

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "ratelimit" {
		t.Errorf("component = %v, want ratelimit", entry["component"])
	}
}

func TestLoggerConcurrentUse(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info(ctx, "concurrent", Field{Key: "n", Value: n})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("interleaved write produced invalid JSON: %q", line)
		}
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	// Must not panic, and WithComponent must stay nop.
	logger := NopLogger().WithComponent("cache")
	logger.Info(context.Background(), "ignored", Field{Key: "k", Value: "v"})
}
