package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{"debug level", LevelDebug, slog.LevelDebug},
		{"info level", LevelInfo, slog.LevelInfo},
		{"warn level", LevelWarn, slog.LevelWarn},
		{"error level", LevelError, slog.LevelError},
		{"upper case", LogLevel("DEBUG"), slog.LevelDebug},
		{"unknown falls back to info", LogLevel("verbose"), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level %s, got %s", LevelInfo, cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("Expected default format %s, got %s", FormatText, cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got '%s'", cfg.Output)
	}
	if cfg.Rotation.Enabled {
		t.Error("Expected rotation to be disabled by default")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("stdout text logger", func(t *testing.T) {
		logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: "stdout"})
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger.Config().Level != LevelInfo {
			t.Errorf("Expected level %s, got %s", LevelInfo, logger.Config().Level)
		}
	})

	t.Run("plain file logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "alicorn.log")

		logger, err := New(Config{Level: LevelDebug, Format: FormatJSON, Output: logFile})
		if err != nil {
			t.Fatalf("Failed to create file logger: %v", err)
		}
		logger.Info("hello")

		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			t.Error("Log file should have been created")
		}
	})

	t.Run("rotating file logger", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "rotating.log")
		cfg := DefaultConfig()
		cfg.Output = logFile
		cfg.Rotation.Enabled = true

		logger, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create rotating logger: %v", err)
		}
		logger.Info("rotated line")

		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "rotated line") {
			t.Errorf("Expected log line in file, got %q", string(data))
		}
	})
}

func newBufferLogger(buf *bytes.Buffer) *Logger {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{Logger: slog.New(handler), config: DefaultConfig()}
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithComponent("comparison").WithSession("abc").InfoComparison("saved", []int64{5, 7}, "trigger", "debounce")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log line: %v", err)
	}
	if entry["component"] != "comparison" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
	if entry["session_id"] != "abc" {
		t.Errorf("Expected session_id field, got %v", entry["session_id"])
	}
	if entry["trigger"] != "debounce" {
		t.Errorf("Expected trigger field, got %v", entry["trigger"])
	}
	ids, ok := entry["scan_ids"].([]interface{})
	if !ok || len(ids) != 2 {
		t.Errorf("Expected two scan ids, got %v", entry["scan_ids"])
	}
}

func TestDefaultLoggerReplacement(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(newBufferLogger(&buf))

	ErrorDatabase("query failed", os.ErrClosed, "operation", "save")

	if !strings.Contains(buf.String(), `"component":"database"`) {
		t.Errorf("Expected database component in output, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "query failed") {
		t.Errorf("Expected message in output, got %s", buf.String())
	}
}
