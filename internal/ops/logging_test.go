package ops

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nearlyhq/nearly-go/internal/config"
)

var errDiskFull = errors.New("disk full")

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *config.Logging
	}{
		{
			name: "text format",
			config: &config.Logging{
				Level:  "info",
				Format: "text",
			},
		},
		{
			name: "json format",
			config: &config.Logging{
				Level:  "debug",
				Format: "json",
			},
		},
		{
			name: "warn level",
			config: &config.Logging{
				Level:  "warn",
				Format: "text",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("expected logger to be created")
			}

			if logger.format != tt.config.Format {
				t.Errorf("expected format %s, got %s", tt.config.Format, logger.format)
			}
		})
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Logging{
		Level:  "info",
		Format: "text",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	component := logger.WithComponent("convsync")
	component.Info("cycle complete")

	out := buf.String()
	if !strings.Contains(out, "component=convsync") {
		t.Errorf("expected component field in output, got %q", out)
	}
	if !strings.Contains(out, "cycle complete") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Logging{
		Level:  "warn",
		Format: "text",
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected below-level messages to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("expected warn message in output, got %q", out)
	}
}

func TestLogStoreOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&config.Logging{Level: "debug", Format: "text"}, &buf)

	logger.LogStoreOperation("add", "liked_posts", nil)
	if !strings.Contains(buf.String(), "store operation completed") {
		t.Errorf("expected completion line, got %q", buf.String())
	}

	buf.Reset()
	logger.LogStoreOperation("remove", "liked_posts", errDiskFull)
	out := buf.String()
	if !strings.Contains(out, "store operation failed") || !strings.Contains(out, "disk full") {
		t.Errorf("expected failure line with cause, got %q", out)
	}
}

func TestDefaultLoggerRoundTrip(t *testing.T) {
	original := Default()
	if original == nil {
		t.Fatal("expected a default logger at startup")
	}
	defer SetDefault(original)

	replacement := NewLogger(&config.Logging{Level: "error", Format: "json"})
	SetDefault(replacement)
	if Default() != replacement {
		t.Error("SetDefault did not take effect")
	}
}

func TestIsDebugEnabled(t *testing.T) {
	debug := NewLogger(&config.Logging{Level: "debug", Format: "text"})
	if !debug.IsDebugEnabled() {
		t.Error("expected debug to be enabled")
	}

	info := NewLogger(&config.Logging{Level: "info", Format: "text"})
	if info.IsDebugEnabled() {
		t.Error("expected debug to be disabled at info level")
	}
}
