package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("portgraph")

// SpanManager handles span lifecycle for node runs and pulls.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartNodeSpan starts a span around one node run.
	StartNodeSpan(ctx context.Context, path, mode string) (context.Context, trace.Span)

	// StartPullSpan starts a span around a pull, parent of the node spans it
	// triggers.
	StartPullSpan(ctx context.Context, path string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, recording err if non-nil.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager using the global OTel tracer provider.
func NewSpanManager() SpanManager {
	return otelSpanManager{}
}

func (otelSpanManager) StartNodeSpan(ctx context.Context, path, mode string) (context.Context, trace.Span) {
	return StartNodeSpan(ctx, path, mode)
}

func (otelSpanManager) StartPullSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartPullSpan(ctx, path)
}

func (otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartNodeSpan starts a "portgraph.node.<path>" span on the global tracer.
func StartNodeSpan(ctx context.Context, path, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "portgraph.node."+path,
		trace.WithAttributes(
			attribute.String("node.path", path),
			attribute.String("node.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPullSpan starts a "portgraph.pull.<path>" span on the global tracer.
func StartPullSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "portgraph.pull."+path,
		trace.WithAttributes(attribute.String("node.path", path)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the recording span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
