package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/backmassage/layerlapse/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Info("test message")
}

func TestNewLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "logs", "layerlapse.log")
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("to file")
	l.With(zap.Int("slot", 7)).Warn("slot warning")
	l.Debug("hidden without verbose")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(cfg.LogFile)
	if !bytes.Contains(b, []byte(`"level":"INFO"`)) || !bytes.Contains(b, []byte("to file")) {
		t.Errorf("log file content: %s", string(b))
	}
	if !bytes.Contains(b, []byte(`"slot":7`)) {
		t.Errorf("structured field missing from file: %s", string(b))
	}
	if bytes.Contains(b, []byte("hidden without verbose")) {
		t.Errorf("debug entry written without verbose: %s", string(b))
	}
}

func TestSuccess_TagsResult(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Success("saved %d frames", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "saved 3 frames" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if entries[0].ContextMap()["result"] != "success" {
		t.Errorf("context = %v, want result=success", entries[0].ContextMap())
	}
}
