package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerScope = "acr.runtime"

// TracerProvider wraps the sdk provider installed as the process-global
// tracer, so the caller can flush and shut it down on exit.
type TracerProvider struct {
	*sdktrace.TracerProvider
}

// NewTracerProvider builds a batching OTLP/HTTP trace exporter pointed at
// endpoint, installs it as the global tracer provider (otel.Tracer calls
// made by StartSpan and every other package-level tracer thereafter reach
// it), and tags every span with the node's identity. An empty endpoint
// points the exporter at 127.0.0.1:0, where nothing listens: the returned
// provider still satisfies StartSpan, but every batch export fails and no
// span reaches a collector.
func NewTracerProvider(ctx context.Context, endpoint, nodeID string) (*TracerProvider, error) {
	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint("127.0.0.1:0"), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new otlp trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", tracerScope),
		attribute.String("acr.node_id", nodeID),
	))
	if err != nil {
		return nil, fmt.Errorf("merge trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{TracerProvider: provider}, nil
}

// StartSpan opens a span under the runtime's tracer scope, tagging it with
// whatever identifying attributes the caller supplies (taskId, agentId,
// planId, and so on).
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerScope).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) onto span and closes it.
func EndSpan(span trace.Span, err error) {
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
