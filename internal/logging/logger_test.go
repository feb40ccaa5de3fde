package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"castscribe/internal/config"
	"castscribe/internal/logging"
	"castscribe/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	noColor := false
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
		Color:       &noColor,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("probe", logging.String("key", "value"))
	return logPath, func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "castscribe.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}

func TestConsoleFormatPlacesComponentBeforeMessage(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	noColor := false
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, Color: &noColor})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "transcription-queue").Info("job started", logging.String("episode_id", "ep 1"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO transcription-queue: job started") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, `episode_id="ep 1"`) {
		t.Fatalf("expected quoted attribute, got %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no color codes, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONFormat(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("expected json line: %v", err)
	}
	if payload["msg"] != "probe" || payload["key"] != "value" || payload["level"] != "info" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", payload)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "lvl.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Fatalf("unexpected filtered output %q", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "chunk failed", "chunk_failed", logging.Error(errors.New("boom")))

	var payload map[string]any
	data, _ := os.ReadFile(logPath)
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldEventType] != "chunk_failed" {
		t.Fatalf("missing event type: %#v", payload)
	}
	if payload[logging.FieldErrorHint] == nil || payload[logging.FieldImpact] == nil {
		t.Fatalf("missing injected defaults: %#v", payload)
	}
	if payload["error"] != "boom" {
		t.Fatalf("expected error string, got %#v", payload["error"])
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithJobID(context.Background(), "job-7")
	ctx = services.WithEpisodeID(ctx, "ep-3")
	logging.WithContext(ctx, base).Info("tagged")

	data, _ := os.ReadFile(logPath)
	line := string(data)
	if !strings.Contains(line, `"job_id":"job-7"`) || !strings.Contains(line, `"episode_id":"ep-3"`) {
		t.Fatalf("expected context fields, got %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 99) {
		t.Fatal("nop logger should never be enabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}
