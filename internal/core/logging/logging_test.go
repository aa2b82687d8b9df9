package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", "json", &buf)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	logger.Debug("hidden")
	logger.Info("interaction selected", "interaction_id", "B")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, want nil", err)
	}
	if record["msg"] != "interaction selected" || record["interaction_id"] != "B" {
		t.Errorf("record = %v, want msg and interaction_id", record)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "text", &buf)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	logger.Debug("conditional evaluated", "field", "person/name")
	if !strings.Contains(buf.String(), "field=person/name") {
		t.Errorf("output = %q, want text key=value record", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("verbose", "json", &bytes.Buffer{}); err == nil {
		t.Errorf("New(verbose) error = nil, want error")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Errorf("New(xml) error = nil, want error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v, want nil", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
