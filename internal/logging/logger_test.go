package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(name))
		})
	}
}

func TestNewLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: buf})

	logger.WithRequestID("req-1").WithExecutionID("exec-1").Debug("statement", slog.String("sql", "SELECT 1"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"execution_id":"exec-1"`)
	assert.Contains(t, out, `"sql":"SELECT 1"`)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "warn", Format: "text", Output: buf})

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_WithLoggerProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf, LoggerProvider: provider})
	_, ok := logger.Handler().(*multiHandler)
	require.True(t, ok)

	logger.WithFields(slog.String("component", "test")).Info("exported")
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))
	assert.Empty(t, GetRequestID(ctx))

	logger := NewLogger(Config{Output: &bytes.Buffer{}})
	ctx = WithLogger(ctx, logger)
	ctx = WithRequestIDContext(ctx, "req-9")
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "req-9", GetRequestID(ctx))
}
