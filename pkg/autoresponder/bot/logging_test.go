package bot

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerTeesToFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "logs", "bot.log")
	var out bytes.Buffer
	logger, closeLog, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", File: file}, &out, false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	var rec map[string]any
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v\n%s", err, out.String())
	}
	if rec["msg"] != "shown" || rec["key"] != "value" {
		t.Errorf("unexpected record %v", rec)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, out.Bytes()) {
		t.Errorf("file content differs from stdout:\nfile: %s\nout:  %s", data, out.String())
	}
}

func TestNewLoggerVerboseText(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger, closeLog, err := NewLogger(LoggingConfig{Level: "error"}, &out, true)
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()

	logger.Debug("details")
	if !strings.Contains(out.String(), "level=DEBUG msg=details") {
		t.Errorf("verbose debug line missing: %q", out.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
