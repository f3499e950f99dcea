package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey is the context key for the visitor session id
	SessionIDKey ContextKey = "session_id"
	// EventIDKey is the context key for the event being processed
	EventIDKey ContextKey = "event_id"
	// PassIDKey is the context key for a drain pass
	PassIDKey ContextKey = "pass_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	SessionID string
	EventID   string
	PassID    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID adds a session id to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithEventID adds an event id to the context
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// WithPassID adds a drain pass id to the context
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, PassIDKey, passID)
}

func getString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetSessionID retrieves the session id from the context
func GetSessionID(ctx context.Context) string {
	return getString(ctx, SessionIDKey)
}

// GetEventID retrieves the event id from the context
func GetEventID(ctx context.Context) string {
	return getString(ctx, EventIDKey)
}

// GetPassID retrieves the drain pass id from the context
func GetPassID(ctx context.Context) string {
	return getString(ctx, PassIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		SessionID: GetSessionID(ctx),
		EventID:   GetEventID(ctx),
		PassID:    GetPassID(ctx),
	}
}

// LoggerFromContext adds the tracing fields present in ctx to logger
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.SessionID != "" {
		lc = lc.Str("session_id", tc.SessionID)
	}
	if tc.EventID != "" {
		lc = lc.Str("event_id", tc.EventID)
	}
	if tc.PassID != "" {
		lc = lc.Str("pass_id", tc.PassID)
	}

	return lc.Logger()
}
