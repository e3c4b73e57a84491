package logger_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitaliisemenov/msg-store/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  Error ", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestSetupWriter(t *testing.T) {
	assert.Equal(t, os.Stdout, logger.SetupWriter(logger.Config{Output: "stdout"}))
	assert.Equal(t, os.Stderr, logger.SetupWriter(logger.Config{Output: "stderr"}))
	assert.Equal(t, os.Stdout, logger.SetupWriter(logger.Config{Output: ""}))
	assert.Equal(t, os.Stdout, logger.SetupWriter(logger.Config{Output: "file"}),
		"file output with no filename falls back to stdout")
	assert.NotEqual(t, os.Stdout, logger.SetupWriter(logger.Config{Output: "file", Filename: "/tmp/t.log"}))
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, logger.NewLogger(logger.Config{Level: "debug", Format: "json"}))
	assert.NotNil(t, logger.NewLogger(logger.Config{Level: "info", Format: "text"}))
}
