package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Debug("hidden")
	slog.New(NewHandler(&buf, "info", "json")).Info("shown", "endpoint", "10.0.0.1:1433")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["endpoint"] != "10.0.0.1:1433" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetup_WritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "dbfleet.log")
	closer := Setup(Options{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	slog.Info("run completed", "run_id", "abc")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "run_id=abc") {
		t.Errorf("log file = %q", data)
	}
}

func TestWithFields_IncludesRequestID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(NewHandler(&buf, "info", "text")))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	WithFields(ctx, "run_id", "r-9").Info("run started")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "run_id=r-9") {
		t.Errorf("log line = %q", out)
	}
}
