package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Join(dir, "relay.jsonl")); err != nil {
		t.Errorf("relay.jsonl not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "errors.jsonl")); err != nil {
		t.Errorf("errors.jsonl not created: %v", err)
	}
}

func TestLogWritesJSONLine(t *testing.T) {
	var sb strings.Builder
	logger := NewWriterLogger(&sb)

	err := logger.Info(CategoryRelay, "request_received", "chat request", map[string]any{
		"path": "/api/chat",
	})
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}

	line := strings.TrimSpace(sb.String())
	var event Event
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if event.Level != LevelInfo {
		t.Errorf("expected level info, got %s", event.Level)
	}
	if event.Category != CategoryRelay {
		t.Errorf("expected category relay, got %s", event.Category)
	}
	if event.EventType != "request_received" {
		t.Errorf("expected type request_received, got %s", event.EventType)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if event.Details["path"] != "/api/chat" {
		t.Errorf("expected details preserved, got %v", event.Details)
	}
}

func TestMinLevelFiltering(t *testing.T) {
	var sb strings.Builder
	logger := NewWriterLogger(&sb)
	logger.SetMinLevel(LevelWarn)

	logger.Debug(CategoryFlow, "event_received", "chunk", nil)
	logger.Info(CategoryFlow, "event_received", "chunk", nil)

	if sb.Len() != 0 {
		t.Errorf("expected debug/info suppressed, got %q", sb.String())
	}

	logger.Warn(CategoryFlow, "stream_slow", "no events", nil)
	if sb.Len() == 0 {
		t.Error("expected warn to be logged")
	}
}

func TestErrorsMirroredToErrorLog(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info(CategoryRelay, "request_received", "ok", nil)
	logger.Error(CategoryNetwork, "invoke_failed", "connection refused", nil)
	logger.Close()

	errLines := readLines(t, filepath.Join(dir, "errors.jsonl"))
	if len(errLines) != 1 {
		t.Fatalf("expected 1 error line, got %d", len(errLines))
	}

	relayLines := readLines(t, filepath.Join(dir, "relay.jsonl"))
	if len(relayLines) != 2 {
		t.Fatalf("expected 2 relay lines, got %d", len(relayLines))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			lines = append(lines, sc.Text())
		}
	}
	return lines
}
