package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("game_id", "com.x.y"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("Attrs() = %v", attrs)
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("Attrs()[0] = %v", attrs[0])
	}
}

func TestNewJSONLoggerCarriesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequest(ctx, "req-1", "")
	Info(ctx, "hello", slog.Int("n", 1))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["request_id"] != "req-1" || line["n"] != float64(1) {
		t.Fatalf("log line = %v", line)
	}
	if _, ok := line["user_id"]; ok {
		t.Fatalf("blank user_id was logged: %v", line)
	}
}

func TestNewRejectsUnknownLevelAndFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("New(bad level) expected error")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("New(bad format) expected error")
	}
	if _, err := New(&bytes.Buffer{}, "WARN", ""); err != nil {
		t.Fatalf("New(WARN) error = %v", err)
	}
}

func TestDebugIsDroppedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", "text")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := WithLogger(context.Background(), logger)

	Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
	Warn(ctx, "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn line not written")
	}
}

func TestSiblingContextsDoNotShareAttrs(t *testing.T) {
	parent := WithAttrs(context.Background(), slog.String("component", "a"))
	left := WithAttrs(parent, slog.String("side", "left"))
	right := WithAttrs(parent, slog.String("side", "right"))

	if got := Attrs(left); len(got) != 2 || got[1].Value.String() != "left" {
		t.Fatalf("Attrs(left) = %v", got)
	}
	if got := Attrs(right); len(got) != 2 || got[1].Value.String() != "right" {
		t.Fatalf("Attrs(right) = %v", got)
	}
	if got := Attrs(parent); len(got) != 1 {
		t.Fatalf("Attrs(parent) = %v", got)
	}
}
