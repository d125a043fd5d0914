package logger

import (
	"testing"

	"github.com/aleister1102/hotpatch/internal/config"
)

func TestNew_DefaultLogger(t *testing.T) {
	cfg := config.NewDefaultLogConfig()
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_ = log
}

func TestBuild_RejectsFileLoggingWithoutPath(t *testing.T) {
	cfg := DefaultLoggerConfig()
	cfg.EnableFile = true
	cfg.FilePath = ""

	_, err := NewLoggerBuilder().WithLoggerConfig(cfg).Build()
	if err == nil {
		t.Fatal("expected error for file logging without a path")
	}
}
