package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the console logger: info and debug go to stdout, errors
// to stderr.
func newLogger(conf LoggingConfig) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(ec)

	var lowest zapcore.Level
	switch conf.Level {
	case "debug":
		lowest = zapcore.DebugLevel
	case "normal":
		lowest = zapcore.InfoLevel
	default:
		return zap.NewNop()
	}

	low := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lowest <= lvl && lvl < zapcore.ErrorLevel
	}))
	high := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	}))

	return zap.New(zapcore.NewTee(low, high)).Named("fluid")
}

// slogAdapter lets the fluid packages log through zap.
type slogAdapter struct {
	log *zap.Logger
}

func newSlogAdapter(log *zap.Logger) slogAdapter {
	return slogAdapter{log: log}
}

func (a slogAdapter) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	r := slog.NewRecord(time.Time{}, level, msg, 0)
	r.Add(args...)

	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})
	a.LogAttrs(ctx, level, msg, attrs...)
}

func (a slogAdapter) LogAttrs(_ context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	ce := a.log.Check(zapLevel(level), msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		fields = append(fields, zapField(attr))
	}
	ce.Write(fields...)
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

func zapField(attr slog.Attr) zap.Field {
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return zap.String(attr.Key, value.String())
	case slog.KindInt64:
		return zap.Int64(attr.Key, value.Int64())
	case slog.KindUint64:
		return zap.Uint64(attr.Key, value.Uint64())
	case slog.KindBool:
		return zap.Bool(attr.Key, value.Bool())
	case slog.KindDuration:
		return zap.Duration(attr.Key, value.Duration())
	case slog.KindGroup:
		group := value.Group()
		fields := make([]zap.Field, 0, len(group))
		for _, member := range group {
			fields = append(fields, zapField(member))
		}
		return zap.Dict(attr.Key, fields...)
	}
	return zap.Any(attr.Key, value.Any())
}
