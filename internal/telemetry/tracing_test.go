package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecordedSpans(t *testing.T, fn func()) []sdktrace.ReadOnlySpan {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	fn()
	return recorder.Ended()
}

func TestStartSpanEndSpanRecordsSuccess(t *testing.T) {
	spans := withRecordedSpans(t, func() {
		_, span := StartSpan(context.Background(), "task.claim")
		EndSpan(span, nil)
	})

	if len(spans) != 1 {
		t.Fatalf("expected one recorded span, got %d", len(spans))
	}
	if spans[0].Name() != "task.claim" {
		t.Fatalf("expected span name task.claim, got %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Fatalf("expected status Ok, got %v", spans[0].Status().Code)
	}
}

func TestStartSpanEndSpanRecordsError(t *testing.T) {
	spans := withRecordedSpans(t, func() {
		_, span := StartSpan(context.Background(), "task.claim")
		EndSpan(span, errors.New("claim failed"))
	})

	if len(spans) != 1 {
		t.Fatalf("expected one recorded span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected status Error, got %v", spans[0].Status().Code)
	}
	events := spans[0].Events()
	if len(events) == 0 || events[0].Name != "exception" {
		t.Fatalf("expected an exception event recording the error, got %+v", events)
	}
}

func TestEndSpanNilIsNoop(t *testing.T) {
	EndSpan(nil, errors.New("ignored"))
}

func TestNewTracerProviderInstallsGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, err := NewTracerProvider(context.Background(), "", "node-1")
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	defer tp.Shutdown(context.Background())

	if otel.GetTracerProvider() != tp.TracerProvider {
		t.Fatalf("expected NewTracerProvider to install itself as the global tracer provider")
	}
}
