package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"karaokeprep/internal/config"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/services"
)

func TestNewFromConfigWritesRotatingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, closer, err := logging.NewFromConfig(&cfg, "", io.Discard)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(cfg.LogFilePath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "file message") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("file output must not carry colour codes, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "pipeline").Info("stage done", logging.String("stage", "lyrics"))

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline: stage done") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "stage=lyrics") {
		t.Fatalf("expected stage attribute, got %q", line)
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if decoded["msg"] != "json message" || decoded["k"] != "v" || decoded["level"] != "info" {
		t.Fatalf("unexpected json record %v", decoded)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "invalid", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info level filtering, got %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTrack(ctx, "ABBA - Waterloo")
	ctx = services.WithStage(ctx, "separate")
	ctx = services.WithItemIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WithContext(ctx, logger).Info("contextual log")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]any{
		logging.FieldTrack:         "ABBA - Waterloo",
		logging.FieldStage:         "separate",
		logging.FieldItemIndex:     float64(3),
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if decoded[key] != value {
			t.Fatalf("field %s = %v, want %v", key, decoded[key], value)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "stale lock recovered", "lock_stale", logging.String(logging.FieldImpact, "previous run crashed"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if decoded[logging.FieldEventType] != "lock_stale" {
		t.Fatalf("expected event type, got %v", decoded)
	}
	if decoded[logging.FieldImpact] != "previous run crashed" {
		t.Fatalf("explicit impact should be kept, got %v", decoded[logging.FieldImpact])
	}
	if decoded[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
}

func TestNewFromConfigCreatesLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "nested", "logs")
	_, closer, err := logging.NewFromConfig(&cfg, "debug", io.Discard)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer closer.Close()
	if info, err := os.Stat(cfg.Paths.LogDir); err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to be created")
	}
}
