package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartGraphSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartGraphSpan(context.Background(), OperationList, "inbox")
	if GetTraceID(ctx) == "" || GetSpanID(ctx) == "" {
		t.Error("expected valid trace and span IDs in context")
	}
	EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "graph.list" {
		t.Errorf("span name = %q, want graph.list", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	var sawFolder bool
	for _, a := range s.Attributes() {
		if string(a.Key) == SpanAttrFolder && a.Value.AsString() == "inbox" {
			sawFolder = true
		}
	}
	if !sawFolder {
		t.Error("expected folder attribute on span")
	}
}

func TestEndSpan_Error(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "gateway.request")
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("unexpected status %+v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("GetTraceID() = %q, want empty", got)
	}
	if got := GetSpanID(context.Background()); got != "" {
		t.Errorf("GetSpanID() = %q, want empty", got)
	}
}
