package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestJSONLogger verifies records come out as parseable JSON with the
// expected fields.
func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)

	log.Info("model loaded", "layers", 2, "vocab", 32)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "model loaded" {
		t.Errorf("msg = %v, want %q", rec["msg"], "model loaded")
	}
	if rec["layers"] != float64(2) {
		t.Errorf("layers = %v, want 2", rec["layers"])
	}
}

// TestLevelFiltering verifies records below the handler level are dropped.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept")

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	if lines != 2 {
		t.Errorf("got %d records, want 2:\n%s", lines, buf.String())
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("session", "abc")

	log.Info("step")

	if !strings.Contains(buf.String(), `"session":"abc"`) {
		t.Errorf("bound attr missing from output: %s", buf.String())
	}
}

func TestWithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).WithGroup("decode")

	log.Info("step", "token", 7)

	if !strings.Contains(buf.String(), `"decode":{"token":7}`) {
		t.Errorf("grouped attr missing from output: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("should not panic or write anywhere")
	log.With("k", "v").WithGroup("g").Info("still fine")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo)

	log.Info("sampling", "temp", 0.8)

	out := buf.String()
	if !strings.Contains(out, "sampling") {
		t.Errorf("message missing from output: %q", out)
	}
	if !strings.Contains(out, "temp=0.8") {
		t.Errorf("attr missing from output: %q", out)
	}
}

func TestPrettyWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo).WithGroup("cache").With("layer", 1)

	log.Info("write", "pos", 3)

	out := buf.String()
	if !strings.Contains(out, "cache.layer=1") {
		t.Errorf("group-prefixed bound attr missing: %q", out)
	}
	if !strings.Contains(out, "cache.pos=3") {
		t.Errorf("group-prefixed record attr missing: %q", out)
	}
}

func TestPrettyQuoting(t *testing.T) {
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo)

	log.Info("prompt", "text", "hello world")

	if !strings.Contains(buf.String(), `text="hello world"`) {
		t.Errorf("string with space not quoted: %q", buf.String())
	}
}

func TestNeedsQuoting(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"plain", false},
		{"has space", true},
		{"tab\there", true},
		{`quo"te`, true},
		{"", false},
	}
	for _, tt := range tests {
		if got := needsQuoting(tt.in); got != tt.want {
			t.Errorf("needsQuoting(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
