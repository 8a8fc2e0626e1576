package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")

	logger := New(Options{Debug: false, LogFile: logFile})
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug disabled")
	}

	if _, err := os.Stat(logFile); err == nil {
		t.Error("Expected no log file to be created when debug is disabled")
	}

	logger = New(Options{Debug: true, LogFile: logFile})
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug enabled")
	}
	defer func() {
		if err := logger.Close(); err != nil {
			t.Errorf("Failed to close logger: %v", err)
		}
	}()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Expected log file to be created when debug is enabled: %v", err)
	}

	if !strings.Contains(string(content), "lockdir debug logging started") {
		t.Error("Expected initial message to be logged")
	}
}

func TestLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	stderr := &bytes.Buffer{}

	logger := NewWithOutput(Options{Debug: true, LogFile: logFile}, &bytes.Buffer{}, stderr)

	logger.Info("Test info message")
	logger.Warning("Test warning message")
	logger.Error("Test error message")

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)
	for _, want := range []string{"Test info message", "Test warning message", "Test error message"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Expected %q to be logged", want)
		}
	}

	if strings.Contains(stderr.String(), "Test warning message") {
		t.Error("Expected warning to stay out of stderr when not verbose")
	}
	if !strings.Contains(stderr.String(), "Test error message") {
		t.Error("Expected error to reach stderr")
	}
}

func TestCloseIsRepeatable(t *testing.T) {
	logger := NewWithOutput(Options{Debug: true, LogFile: filepath.Join(t.TempDir(), "x.log")}, &bytes.Buffer{}, &bytes.Buffer{})

	if err := logger.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got: %v", err)
	}
}
