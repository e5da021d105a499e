package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "window")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartBridgeSpan creates a span for a window-side bridge operation such as
// init or reconcile.
func StartBridgeSpan(ctx context.Context, operation, window string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("bridge")
	ctx, span := tracer.Start(ctx, "bridge."+operation)

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("window", window),
		attribute.String("component", "bridge"),
	)

	return ctx, span
}

// StartHostSpan creates a span for one host command.
func StartHostSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("host")
	ctx, span := tracer.Start(ctx, "host.command", trace.WithSpanKind(trace.SpanKindServer))

	span.SetAttributes(
		attribute.String("command", command),
		attribute.String("component", "host"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
}
