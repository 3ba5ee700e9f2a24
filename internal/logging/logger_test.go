package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatsync.log")
	logger, err := New(path, "work", WithoutConsole(), WithLevel("debug"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["profile"] != "work" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.log")
	logger, err := New(path, "main", WithoutConsole(), WithLevel("warn"))
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("info line written at warn level: %s", data)
	}
}

func TestLevelOf(t *testing.T) {
	if l, err := LevelOf("error"); err != nil || l != zapcore.ErrorLevel {
		t.Errorf("LevelOf(error) = %v, %v", l, err)
	}
	if _, err := LevelOf("loud"); err == nil {
		t.Error("LevelOf(loud) should fail")
	}
}

func TestRetryableSatisfiesLeveledLogger(t *testing.T) {
	var _ retryablehttp.LeveledLogger = Retryable(nil)
}
