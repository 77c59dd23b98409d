package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLogger(t *testing.T) {
	t.Run("respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

		log.Debug("debug message")
		log.Info("info message")
		log.Warn("warn message")
		log.Error("error message")

		output := buf.String()
		if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
			t.Error("output should not contain messages below warn")
		}
		if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
			t.Error("output should contain warn and error messages")
		}
	})

	t.Run("With adds context to all logs", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(slog.NewJSONHandler(&buf, nil)).With("request_id", "123")

		log.Info("first message", "url", "https://courses.illinois.edu/cisapi/")
		log.Info("second message")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 log lines, got %d", len(lines))
		}

		for i, line := range lines {
			var entry map[string]any
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				t.Fatalf("failed to unmarshal log entry %d: %v", i, err)
			}
			if entry["request_id"] != "123" {
				t.Errorf("line %d: request_id = %v, want '123'", i, entry["request_id"])
			}
		}
	})

	t.Run("nil handler uses default", func(t *testing.T) {
		log := New(nil)
		if log == nil {
			t.Fatal("New(nil) should return a logger")
		}
		log.Info("test message")
	})
}

func TestNoopLogger(t *testing.T) {
	log := Noop()

	log.Debug("debug message", "key", "value")
	log.Info("info message", "key", "value")
	log.Warn("warn message", "key", "value")
	log.Error("error message", "key", "value")

	if log.With("key", "value") != log {
		t.Error("With should return the same noop logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithOptions(&buf, "info", "text")
		if err != nil {
			t.Fatalf("NewWithOptions() error = %v", err)
		}

		log.Info("test message", "key", "value")

		if !strings.Contains(buf.String(), "key=value") {
			t.Errorf("output = %q, want key=value pair", buf.String())
		}
	})

	t.Run("json format by default", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithOptions(&buf, "debug", "")
		if err != nil {
			t.Fatalf("NewWithOptions() error = %v", err)
		}

		log.Debug("test message")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if entry["level"] != "DEBUG" {
			t.Errorf("level = %v, want DEBUG", entry["level"])
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		if _, err := NewWithOptions(nil, "loud", "json"); err == nil {
			t.Error("expected error for unknown level")
		}
		if _, err := NewWithOptions(nil, "info", "xml"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestCanonicalLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"warning", "warn", false},
		{"DEBUG", "debug", false},
		{"Info", "info", false},
		{"", "info", false},
		{" error ", "error", false},
		{"loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := CanonicalLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanonicalLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
