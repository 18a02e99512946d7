package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Novella tracer.
const tracerName = "github.com/sversen/novella"

// Span attribute keys shared by playback spans. Scene and beat identify the
// story position; speaker ties a span to the voice being synthesised.
const (
	AttrScene   = "novella.scene"
	AttrBeat    = "novella.beat"
	AttrSpeaker = "novella.speaker"
)

// Tracer returns the package-level [trace.Tracer] for Novella. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartLineSpan starts the span covering one line's cache lookup, synthesis
// and playback, tagged with its story position. The caller must call
// span.End() when the line's audio pipeline finishes or unwinds.
func StartLineSpan(ctx context.Context, sceneID, beatID, speaker string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "playback.line",
		trace.WithAttributes(
			attribute.String(AttrScene, sceneID),
			attribute.String(AttrBeat, beatID),
			attribute.String(AttrSpeaker, speaker),
		))
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
