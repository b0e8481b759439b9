package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"localstack-relay/internal/config"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := Level(tt.in); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("redirected", "host", "b.s3.amazonaws.com")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "redirected" {
		t.Errorf("msg = %v, want %q", entry["msg"], "redirected")
	}
	if entry["host"] != "b.s3.amazonaws.com" {
		t.Errorf("host = %v, want %q", entry["host"], "b.s3.amazonaws.com")
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&config.LogConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("visible")

	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("output = %q, want text record with msg=visible", buf.String())
	}
}

func TestConfigureLogrus(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	ConfigureLogrus(l, &config.LogConfig{Level: "warn", Format: "json"}, &buf)

	if l.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want %v", l.GetLevel(), logrus.WarnLevel)
	}

	l.Info("hidden")
	l.Warn("client connection closed")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("logrus output is not a single JSON record: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "client connection closed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "client connection closed")
	}
}

func TestOutput_NoFile(t *testing.T) {
	var stdout bytes.Buffer
	w := output(&config.LogConfig{}, &stdout)
	if w != &stdout {
		t.Error("output() without a file should return stdout unchanged")
	}
}

func TestOutput_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	var stdout bytes.Buffer
	w := output(&config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, &stdout)

	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if stdout.String() != "line\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "line\n")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("file = %q, want %q", data, "line\n")
	}
}
