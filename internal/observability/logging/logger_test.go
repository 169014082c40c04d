package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewJSONLoggerTagsService(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLoggerTo(buf, "corporate-agent-api", "info")

	logger.Info("submission accepted", "submission_id", "sub-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["service"] != "corporate-agent-api" {
		t.Fatalf("service = %v", entry["service"])
	}
	if entry["msg"] != "submission accepted" || entry["submission_id"] != "sub-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewJSONLoggerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSONLoggerTo(buf, "corporate-agent-worker", "warn")

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" Info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
