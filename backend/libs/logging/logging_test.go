package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestBuildFallsBackToInfo(t *testing.T) {
	logger, err := Build("not-a-level", "")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be disabled by default")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be enabled")
	}
}

func TestBuildHonoursLevelAndConsoleEncoding(t *testing.T) {
	logger, err := Build("DEBUG", "console")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}
