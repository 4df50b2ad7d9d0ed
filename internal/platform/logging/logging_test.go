package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONToStdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: "info", Stdout: &buf})
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("sample_id", "M001").Msg("sample collected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["sample_id"] != "M001" || entry["message"] != "sample collected" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["service"] != "lab-server" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
}

func TestNew_RotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "lab.log")
	logger, closer := New(Options{Level: "info", Stdout: &buf, File: path, MaxSizeMB: 1})

	logger.Warn().Msg("stock low")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "stock low") {
		t.Errorf("log file missing entry: %q", data)
	}
	if !strings.Contains(buf.String(), "stock low") {
		t.Errorf("stdout missing entry: %q", buf.String())
	}
}
