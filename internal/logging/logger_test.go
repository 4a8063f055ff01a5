package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linebridge/internal/logging"
)

func TestNewWritesConsoleLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "relay")
	scoped.Info("envelope delivered", logging.Int64("subscription", 7), logging.String("type", "video"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO relay: envelope delivered") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "subscription=7") || !strings.Contains(line, "type=video") {
		t.Fatalf("missing attributes: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewJSONFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Warn("publish failed", logging.String(logging.FieldEventType, "relay_publish_failed"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"relay_publish_failed"`) {
		t.Fatalf("expected json attributes, got %q", string(data))
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:            "warn",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("should be dropped")
	logger.Warn("should appear")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "should be dropped") {
		t.Fatal("info line was not filtered")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Fatal("warn line missing")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("nothing happens", logging.Error(os.ErrNotExist))
}
