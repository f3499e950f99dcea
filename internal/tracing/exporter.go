package tracing

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to a zerolog logger, one entry per span
type LogExporter struct {
	logger  zerolog.Logger
	stopped atomic.Bool
}

// NewLogExporter creates an exporter over logger
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger.With().Str("component", "tracing").Logger()}
}

// ExportSpans logs each span with its ids, timing, status and attributes
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return nil
	}

	for _, span := range spans {
		sc := span.SpanContext()
		attrs := zerolog.Dict()
		for _, kv := range span.Attributes() {
			attrs = attrs.Str(string(kv.Key), kv.Value.Emit())
		}

		entry := e.logger.Debug()
		if span.Status().Code == codes.Error {
			entry = e.logger.Warn().Str("status", span.Status().Description)
		}

		parent := ""
		if span.Parent().IsValid() {
			parent = span.Parent().SpanID().String()
		}

		entry.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Str("parent_span_id", parent).
			Str("span", span.Name()).
			Dur("duration", span.EndTime().Sub(span.StartTime())).
			Dict("attributes", attrs).
			Msg("Span finished")
	}
	return nil
}

// Shutdown stops further exports
func (e *LogExporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}
