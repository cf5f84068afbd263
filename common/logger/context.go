package logger

import (
	"context"
)

type loggerKey struct{}

// FromContext extracts a logger from the context or falls back to the process default
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Instance()
}

// ContextWithLogger returns a context with the logger stored for later retrieval via FromContext
func ContextWithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// ContextWithFields returns a context with a logger to which the fields are appended
func ContextWithFields(ctx context.Context, fields []Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}
