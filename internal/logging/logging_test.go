package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_AutoFormatUsesJSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "info", "auto", false)
	logger.Info("hello", "source", "amazon")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["source"] != "amazon" {
		t.Errorf("expected source attribute, got %v", rec)
	}
}

func TestNew_AutoFormatUsesTextOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "info", "auto", true)
	logger.Info("hello", "source", "flipkart")

	if !strings.Contains(buf.String(), "source=flipkart") {
		t.Errorf("expected text handler output, got %q", buf.String())
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "warn", "text", false)
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("unexpected output %q", out)
	}
}
