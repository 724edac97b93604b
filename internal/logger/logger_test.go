package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath:   logPath,
		MaxFileSize:   1024,
		Level:         LevelDebug,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath:   logPath,
		MaxFileSize:   1024 * 1024,
		Level:         LevelDebug,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true))
	logger.Error("error message", errors.New("test error"), Float64("rate", 3.14))

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	logContent := string(content)

	for _, want := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]", "key=value", "count=42", `error="test error"`} {
		if !strings.Contains(logContent, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024 * 1024,
		Level:       LevelWarn,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if strings.Contains(string(content), "hidden") {
		t.Error("messages below the configured level were written")
	}
	if !strings.Contains(string(content), "visible warn") {
		t.Error("warn message missing")
	}
}

func TestGlobalLoggerFallsBackToNoop(t *testing.T) {
	SetGlobalLogger(nil)
	defer SetGlobalLogger(nil)

	// Must not panic without initialization.
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error", errors.New("boom"))
}

func TestRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 128,
		Level:       LevelInfo,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	for i := 0; i < 20; i++ {
		logger.Info("a message long enough to push the file over the rotation threshold")
	}
	logger.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("rotated backup file was not created")
	}
}
