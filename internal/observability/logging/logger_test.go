package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "api", "info", "json")
	logger.Info("workflow_stage_changed", "stage", "review")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	if record["service"] != "api" || record["msg"] != "workflow_stage_changed" || record["stage"] != "review" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "relay", "debug", "TEXT").Debug("relay_started")
	if !strings.Contains(buf.String(), "msg=relay_started") || !strings.Contains(buf.String(), "service=relay") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "api", "warn", "json").Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
