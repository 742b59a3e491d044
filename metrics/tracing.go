package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/isdmx/safebox/result"
)

const instrumentationName = "github.com/isdmx/safebox"

// StartSpan starts a span from the global tracer provider. Without a
// configured provider the span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan annotates span with the outcome of res and ends it
func EndSpan(span trace.Span, res *result.Result) {
	defer span.End()
	if res == nil {
		return
	}
	span.SetAttributes(
		attribute.String("safebox.outcome", res.Outcome()),
		attribute.Int64("safebox.operations", res.Operations),
		attribute.Int("safebox.output_lines", len(res.Output)),
	)
	if res.Failed() {
		span.SetStatus(codes.Error, res.Err.Message)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordError marks span as failed with err
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
