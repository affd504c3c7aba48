package log

import (
	"context"
	"log/slog"
	"net/http"

	"finrecords/internal/core"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to slog's default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// Middleware adds logger to every request context, tagged with the request id
// when extractRequestID returns one.
func Middleware(logger *Logger, extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger
			if extractRequestID != nil {
				if id := extractRequestID(r); id != "" {
					l = l.With(FieldRequestID, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// LogRecordChange logs a confirmed mutation of a record.
func (l *Logger) LogRecordChange(ctx context.Context, op string, r core.FinancialRecord, version uint64) {
	fields := NewFields().
		WithRecord(r).
		WithOperation(op)
	fields[FieldVersion] = version
	l.InfoContext(ctx, "record "+op+" applied", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request at a level matching its status.
func (l *Logger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, clientIP).
		WithHTTPResponse(statusCode, durationMs)
	l.Logger.Log(ctx, level, "HTTP request completed", l.args(fields.ToSlice())...)
}
