package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("run_id", "r-1"))

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	log.Warn(context.Background(), "propagation failed",
		Time("instant", at),
		Int("code", 6),
		Float64("distance_km", 1.5),
		Err(errors.New("decayed")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":         "propagation failed",
		"level":       "WARN",
		"run_id":      "r-1",
		"instant":     "2025-01-02T02:04:05Z",
		"code":        float64(6),
		"distance_km": 1.5,
		"error":       "decayed",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("field %q = %v, want %v", k, rec[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	log.Error(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatal("error line not written")
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" || RequestIDFromContext(ctx) != id {
		t.Fatalf("request id not stored, got %q", id)
	}
	again, id2 := EnsureRequestID(ctx)
	if id2 != id || again != ctx {
		t.Fatal("EnsureRequestID replaced an existing id")
	}

	ctx = ContextWithLogger(ctx, nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatal("ContextWithLogger(nil) should store a noop logger")
	}
}
