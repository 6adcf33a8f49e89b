package logging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger wraps structured logging with OpenTelemetry integration
// Provides consistent logging interface across application components
// Automatically correlates logs with distributed traces for observability
// Time Complexity: O(1) for logging operations
// Space Complexity: O(1) per log entry
type Logger struct {
    slogger *slog.Logger // Structured logger implementation
    tracer  trace.Tracer // OpenTelemetry tracer for correlation
}

// LogLevel represents logging severity levels
// Maps to standard syslog levels for consistent interpretation
type LogLevel int

const (
    LogLevelDebug LogLevel = iota // Detailed debugging information
    LogLevelInfo                  // General information messages
    LogLevelWarn                  // Warning conditions
    LogLevelError                 // Error conditions
    LogLevelFatal                 // Critical errors causing termination
)

// NewLogger creates structured logger with OpenTelemetry integration
// Configures JSON output for structured log parsing and correlation
// Initializes tracer for distributed tracing integration
// Time Complexity: O(1) - logger initialisation
// Space Complexity: O(1) - fixed logger structure
func NewLogger(service string) *Logger {
    // Configure structured JSON logging
    handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
        Level: slog.LevelDebug,
        AddSource: true,
        ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
            // Rename timestamp field for consistency
            if a.Key == slog.TimeKey {
                a.Key = "timestamp"
            }
            return a
        },
    })

    logger := slog.New(handler).With(slog.String("service", service))
    tracer := otel.Tracer(service)

    return &Logger{
        slogger: logger,
        tracer:  tracer,
    }
}

// Debug logs debug-level message with context and trace correlation
// Automatically includes trace and span IDs when available
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
    l.logWithTrace(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs informational message with context and trace correlation
// Standard level for connection establishment, cache reads, origin fetches
func (l *Logger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
    l.logWithTrace(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs warning message with context and trace correlation
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
    l.logWithTrace(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs a recoverable error with its errno-bearing description.
// Go's *net.OpError / *os.SyscallError already stringify the syscall
// errno (e.g. "connection refused", "broken pipe"), so err.Error() alone
// satisfies spec.md's "errno descriptions" logging requirement.
// Automatically marks the associated span as error for tracing.
func (l *Logger) Error(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
    if err != nil {
        attrs = append(attrs, slog.String("error", err.Error()))

        if span := trace.SpanFromContext(ctx); span.IsRecording() {
            span.SetStatus(codes.Error, err.Error())
            span.RecordError(err)
        }
    }

    l.logWithTrace(ctx, slog.LevelError, msg, attrs...)
}

type ctxKey int

const requestIDKey ctxKey = 0

// WithRequestID attaches a per-connection correlation ID to ctx. Every
// log line written through that context (or a descendant of it) carries
// the ID alongside its trace/span IDs, so a single client connection's
// log lines can be grepped out even across a busy worker pool.
func WithRequestID(ctx context.Context, id string) context.Context {
    return context.WithValue(ctx, requestIDKey, id)
}

// Fatal logs a fatal error and terminates the process.
// Used only for startup failures (bind/listen, thread creation).
func (l *Logger) Fatal(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
    if err != nil {
        attrs = append(attrs, slog.String("error", err.Error()))
    }

    l.logWithTrace(ctx, slog.LevelError, msg, attrs...)
    os.Exit(1)
}

// logWithTrace adds OpenTelemetry trace correlation to log entries
func (l *Logger) logWithTrace(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
    span := trace.SpanFromContext(ctx)
    if span.SpanContext().IsValid() {
        attrs = append(attrs,
            slog.String("trace_id", span.SpanContext().TraceID().String()),
            slog.String("span_id", span.SpanContext().SpanID().String()),
        )
    }
    if id, ok := ctx.Value(requestIDKey).(string); ok {
        attrs = append(attrs, slog.String("request_id", id))
    }

    l.slogger.LogAttrs(ctx, level, msg, attrs...)
}

// StartSpan creates a new OpenTelemetry span correlated with this logger
func (l *Logger) StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
    return l.tracer.Start(ctx, operationName, trace.WithAttributes(attrs...))
}

// WithFields creates logger with pre-configured attributes
// Returns new logger instance to avoid modifying original
func (l *Logger) WithFields(attrs ...slog.Attr) *Logger {
    anyAttrs := make([]any, len(attrs))
    for i, a := range attrs {
        anyAttrs[i] = a
    }
    return &Logger{
        slogger: l.slogger.With(anyAttrs...),
        tracer:  l.tracer,
    }
}

// HTTPRequestLogger creates middleware for HTTP request logging. Used
// only by the administrative /metrics and /healthz surface, never by
// the proxy's HTTP/1.0 data plane (that path logs directly via Info).
func (l *Logger) HTTPRequestLogger() func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            start := time.Now()

            ctx, span := l.StartSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
                attribute.String("http.method", r.Method),
                attribute.String("http.url", r.URL.String()),
                attribute.String("http.remote_addr", r.RemoteAddr),
            )
            defer span.End()

            wrapper := &responseWriter{ResponseWriter: w, statusCode: 200}
            next.ServeHTTP(wrapper, r.WithContext(ctx))

            duration := time.Since(start)
            l.Info(ctx, "admin request completed",
                slog.String("method", r.Method),
                slog.String("path", r.URL.Path),
                slog.Int("status", wrapper.statusCode),
                slog.Duration("duration", duration),
            )

            span.SetAttributes(attribute.Int("http.status_code", wrapper.statusCode))
            if wrapper.statusCode >= 400 {
                span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
            }
        })
    }
}

// responseWriter wraps http.ResponseWriter to capture response status
type responseWriter struct {
    http.ResponseWriter
    statusCode int
}

// WriteHeader captures status code for logging
func (w *responseWriter) WriteHeader(code int) {
    w.statusCode = code
    w.ResponseWriter.WriteHeader(code)
}
