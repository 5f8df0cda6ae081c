package logging

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
)

type (
	loggerKey struct{}
	attrsKey  struct{}
)

var fallback atomic.Pointer[slog.Logger]

func init() {
	fallback.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// SetDefault replaces the logger used when ctx carries none.
func SetDefault(logger *slog.Logger) {
	if logger != nil {
		fallback.Store(logger)
	}
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithAttrs stores attrs on ctx. A key already present keeps its position and takes the new value.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(attrs) == 0 {
		return ctx
	}
	return context.WithValue(ctx, attrsKey{}, mergeAttrs(stored(ctx), attrs))
}

// WithRequest tags ctx with the request id and the acting user, skipping blanks.
func WithRequest(ctx context.Context, requestID string, userID string) context.Context {
	var attrs []slog.Attr
	if requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	return WithAttrs(ctx, attrs...)
}

func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return fallback.Load()
}

// Attrs returns a copy of the attrs stored on ctx.
func Attrs(ctx context.Context) []slog.Attr {
	return slices.Clone(stored(ctx))
}

func stored(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, msg, attrs)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, msg, attrs)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, msg, attrs)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, msg, attrs)
}

func emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := Logger(ctx)
	if !l.Enabled(ctx, level) {
		return
	}
	l.LogAttrs(ctx, level, msg, mergeAttrs(stored(ctx), attrs)...)
}

// mergeAttrs never mutates base, which may be shared by sibling contexts.
func mergeAttrs(base []slog.Attr, extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, a := range extra {
		if a.Key != "" {
			if i := slices.IndexFunc(out, func(b slog.Attr) bool { return b.Key == a.Key }); i >= 0 {
				out[i] = a
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
