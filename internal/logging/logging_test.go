package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewWritesJSONToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "test")).Debug(context.Background(), "hello",
		Int("n", 3),
		Float64("speed", 1.5),
		Bool("ok", true),
		Duration("tick", 33*time.Millisecond),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" || rec["error"] != "boom" || rec["ok"] != true {
		t.Fatalf("record = %v", rec)
	}
	if rec["tick"] != "33ms" {
		t.Fatalf("tick = %v", rec["tick"])
	}
	if rec["n"] != float64(3) || rec["speed"] != 1.5 {
		t.Fatalf("numeric fields = %v, %v", rec["n"], rec["speed"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "kept")
	if !bytes.Contains(buf.Bytes(), []byte("kept")) {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil || RequestIDFromContext(ctx) != id {
		t.Fatalf("request id = %q, from ctx %q", id, RequestIDFromContext(ctx))
	}
	if _, again := EnsureRequestID(ctx); again != id {
		t.Fatalf("EnsureRequestID replaced %q with %q", id, again)
	}

	ctx, l := WithRequestLogger(ctx, nil)
	if l == nil {
		t.Fatalf("WithRequestLogger returned nil logger")
	}
	ctx = ContextWithLogger(ctx, l)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("logger not stored on context")
	}
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("empty context returned a logger")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, cfg := range []Config{{}, {Level: "DEBUG", Format: "json"}, {Level: "warning", Format: "text"}} {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%+v): %v", cfg, err)
		}
	}
	for _, cfg := range []Config{{Level: "trace"}, {Format: "logfmt"}} {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Validate(%+v) err = %v", cfg, err)
		}
	}
	if lvl, err := ParseLevel("error"); err != nil || lvl != slog.LevelError {
		t.Fatalf("ParseLevel(error) = %v, %v", lvl, err)
	}
}
