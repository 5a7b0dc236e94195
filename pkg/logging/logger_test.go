package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger.Info().Str("query_id", "4816299").Msg("refresh pass complete")

	out := buf.String()
	if !strings.Contains(out, "refresh pass complete") {
		t.Errorf("Expected log output to contain message, got %q", out)
	}
	if !strings.Contains(out, "4816299") {
		t.Errorf("Expected log output to contain query_id field, got %q", out)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: buf,
	})

	logger.Debug().Msg("debug suppressed")
	logger.Info().Msg("info suppressed")
	logger.Warn().Msg("warn visible")

	out := buf.String()
	if strings.Contains(out, "debug suppressed") || strings.Contains(out, "info suppressed") {
		t.Errorf("Expected debug/info to be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "warn visible") {
		t.Errorf("Expected warn message in output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		want  zerolog.Level
	}{
		{name: "debug", level: LevelDebug, want: zerolog.DebugLevel},
		{name: "info", level: LevelInfo, want: zerolog.InfoLevel},
		{name: "warn", level: LevelWarn, want: zerolog.WarnLevel},
		{name: "warning_alias", level: LogLevel("warning"), want: zerolog.WarnLevel},
		{name: "error", level: LevelError, want: zerolog.ErrorLevel},
		{name: "uppercase", level: LogLevel("DEBUG"), want: zerolog.DebugLevel},
		{name: "unknown_defaults_to_info", level: LogLevel("verbose"), want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.level); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("refresh-scheduler")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), "refresh-scheduler") {
		t.Errorf("Expected component field in output, got %q", buf.String())
	}
}
