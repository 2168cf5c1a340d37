package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlogAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := newSlogAdapter(zap.New(core))
	ctx := context.Background()

	adapter.LogAttrs(ctx, slog.LevelWarn, "navigation failed",
		slog.String("url", "/x"),
		slog.Int("status", 500),
		slog.Bool("fluid", true),
		slog.Duration("took", time.Second),
		slog.Any("keys", []string{"a"}),
	)
	adapter.Log(ctx, slog.LevelDebug, "rebound", "count", 3, slog.Group("doc", slog.String("path", "/")))
	adapter.Log(ctx, slog.LevelError+4, "fatal-ish")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "navigation failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/x", fields["url"])
	assert.Equal(t, int64(500), fields["status"])
	assert.Equal(t, true, fields["fluid"])
	assert.Equal(t, time.Second, fields["took"])
	assert.Equal(t, []any{"a"}, fields["keys"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	fields = entries[1].ContextMap()
	assert.Equal(t, int64(3), fields["count"])
	assert.Equal(t, map[string]any{"path": "/"}, fields["doc"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestSlogAdapter_LevelFiltered(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	adapter := newSlogAdapter(zap.New(core))

	adapter.Log(context.Background(), slog.LevelDebug, "hidden")
	adapter.Log(context.Background(), slog.LevelInfo, "shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestNewLogger(t *testing.T) {
	assert.False(t, newLogger(LoggingConfig{Level: "none"}).Core().Enabled(zapcore.ErrorLevel))
	assert.True(t, newLogger(LoggingConfig{Level: "normal"}).Core().Enabled(zapcore.InfoLevel))
	assert.False(t, newLogger(LoggingConfig{Level: "normal"}).Core().Enabled(zapcore.DebugLevel))
	assert.True(t, newLogger(LoggingConfig{Level: "debug"}).Core().Enabled(zapcore.DebugLevel))
}
