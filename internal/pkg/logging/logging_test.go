package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("dropped")
	log.Warn("kept", "session_id", "s1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if rec["msg"] != "kept" || rec["session_id"] != "s1" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "TEXT").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
