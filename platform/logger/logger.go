// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// AdvisorIDKey is the context key for the acting advisor ID
	AdvisorIDKey contextKey = "advisor_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and advisor_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if advisorID, ok := ctx.Value(AdvisorIDKey).(string); ok && advisorID != "" {
		newLogger = newLogger.WithAdvisorID(advisorID)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithAdvisorID returns a logger with the acting advisor ID
func (l *Logger) WithAdvisorID(advisorID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("advisor_id", advisorID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// SweepSummary logs the outcome of one escalation sweep invocation
func (l *Logger) SweepSummary(candidates, reassigned, released, skipped, failed int, durationMs float64) {
	l.Info("escalation_sweep",
		slog.Int("candidates", candidates),
		slog.Int("reassigned", reassigned),
		slog.Int("released", released),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", durationMs),
	)
}

// ClaimEvent logs the outcome of a free-pool claim attempt
func (l *Logger) ClaimEvent(prospectID, advisorID string, won bool) {
	if won {
		l.Info("claim_event",
			slog.String("prospect_id", prospectID),
			slog.String("advisor_id", advisorID),
			slog.Bool("won", won),
		)
	} else {
		l.Warn("claim_event",
			slog.String("prospect_id", prospectID),
			slog.String("advisor_id", advisorID),
			slog.Bool("won", won),
		)
	}
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
