package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (func(), string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "mediaflow.log")
	logger, err := logging.New(logging.Options{
		Format:           format,
		Level:            level,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return func() {
		ctx := services.WithJobID(context.Background(), "0f8fad5b-d9cb-469f-a165-70867728950e")
		ctx = services.WithActivity(ctx, "image-thumbnail")
		logging.WithContext(ctx, logger).With(logging.String(logging.FieldComponent, "orchestrator")).
			Info("task finished", logging.Int("size", 256))
		logger.Debug("hidden unless debug")
	}, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "mediaflow.log"))
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no colour codes in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsContextFields(t *testing.T) {
	emit, path := newFileLogger(t, "console", "info")
	emit()

	content := readLog(t, path)
	if !strings.Contains(content, "INFO [0f8fad5b] orchestrator: task finished") {
		t.Fatalf("unexpected console prefix: %q", content)
	}
	if !strings.Contains(content, "activity=image-thumbnail") || !strings.Contains(content, "size=256") {
		t.Fatalf("expected structured fields, got %q", content)
	}
	if strings.Contains(content, "hidden unless debug") {
		t.Fatalf("debug record leaked at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	emit, path := newFileLogger(t, "console", "debug")
	emit()

	content := readLog(t, path)
	if !strings.Contains(content, "hidden unless debug") {
		t.Fatalf("expected debug record, got %q", content)
	}
	if !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information at debug level, got %q", content)
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	emit, path := newFileLogger(t, "json", "info")
	emit()

	line := strings.TrimSpace(readLog(t, path))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("decode json log line %q: %v", line, err)
	}
	for _, key := range []string{"ts", "level", "msg", logging.FieldJobID, logging.FieldActivity, logging.FieldComponent} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected key %q in %v", key, record)
		}
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestErrorKindAttr(t *testing.T) {
	attr := logging.ErrorKind(services.Invalid("file", "must be set"))
	if attr.Key != logging.FieldErrorKind || attr.Value.String() != "validation" {
		t.Fatalf("unexpected attr: %v", attr)
	}
	if logging.Error(nil).Value.String() != "<nil>" {
		t.Fatal("expected nil error placeholder")
	}
	if got := logging.Error(errors.New("boom")).Value.Any().(error).Error(); got != "boom" {
		t.Fatalf("unexpected error attr: %q", got)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "callback failed", "callback_failed", logging.String(logging.FieldImpact, "subscriber missed an update"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "callback_failed" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if record[logging.FieldImpact] != "subscriber missed an update" {
		t.Fatalf("expected caller impact to be kept, got %v", record[logging.FieldImpact])
	}
}

func TestErrorWithContextKeepsCallerHint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", logging.String(logging.FieldErrorHint, "retry the job"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["level"] != "error" || record[logging.FieldEventType] != "job_failed" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[logging.FieldErrorHint] != "retry the job" {
		t.Fatalf("caller hint replaced: %v", record[logging.FieldErrorHint])
	}
	if _, ok := record[logging.FieldImpact]; ok {
		t.Fatalf("error records do not get a default impact: %v", record)
	}
}

func TestConsoleLoggerFlattensGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("upload").Info("artifact stored", logging.String("url", "http://host/a b.png"))

	content := readLog(t, path)
	if !strings.Contains(content, `upload.url="http://host/a b.png"`) {
		t.Fatalf("expected dotted, quoted field, got %q", content)
	}
}
