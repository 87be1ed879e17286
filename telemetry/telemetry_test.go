// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.36.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dialogbench/dialogbench/evaluation"
)

func TestTelemetrySmoke(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	ctx := t.Context()

	serviceName := "test-service"
	serviceVersion := "1.2.3"
	r, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceVersionKey.String(serviceVersion),
	))
	if err != nil {
		t.Fatalf("failed to create resource: %v", err)
	}
	service, err := New(t.Context(),
		WithSpanProcessors(sdktrace.NewSimpleSpanProcessor(exporter)),
		WithServiceName(serviceName),
		WithResource(r),
	)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	service.SetGlobalOtelProviders()

	tracer := otel.Tracer("test-tracer")
	spanName := "test-span"

	_, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
	span.End()

	if err := service.TracerProvider().ForceFlush(context.Background()); err != nil {
		t.Fatalf("failed to flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	gotSpan := spans[0]
	if gotSpan.Name != spanName {
		t.Errorf("got span name %q, want %q", gotSpan.Name, spanName)
	}
	gotServiceName, gotServiceVersion := extractResourceAttributes(gotSpan.Resource)
	if gotServiceName != serviceName {
		t.Errorf("want 'service.name' attribute %q, got %q", serviceName, gotServiceName)
	}
	if gotServiceVersion != serviceVersion {
		t.Errorf("want 'service.version' attribute %q, got %q", serviceVersion, gotServiceVersion)
	}

	if err := service.Shutdown(context.WithoutCancel(ctx)); err != nil {
		t.Errorf("telemetry.Shutdown() failed: %v", err)
	}
	if len(exporter.GetSpans()) != 0 {
		t.Errorf("expected no spans after shutdown, got %d", len(exporter.GetSpans()))
	}
}

func TestTelemetryCustomProvider(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	unusedExporter := tracetest.NewInMemoryExporter()
	ctx := t.Context()

	service, err := New(t.Context(),
		WithTracerProvider(tp),
		WithSpanProcessors(sdktrace.NewSimpleSpanProcessor(unusedExporter)),
	)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	t.Cleanup(func() {
		if err := service.Shutdown(context.WithoutCancel(ctx)); err != nil {
			t.Errorf("telemetry.Shutdown() failed: %v", err)
		}
	})

	tracer := service.TracerProvider().Tracer("test-tracer")
	spanName := "test-span"
	_, span := tracer.Start(ctx, spanName)
	span.End()

	if err := service.TracerProvider().ForceFlush(context.Background()); err != nil {
		t.Fatalf("failed to flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != spanName {
		t.Errorf("got span name %q, want %q", spans[0].Name, spanName)
	}

	if len(unusedExporter.GetSpans()) != 0 {
		t.Fatalf("got %d spans, want 0", len(unusedExporter.GetSpans()))
	}
}

func TestTelemetryDisabledWithoutExporters(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	service, err := New(t.Context())
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	if service.TracerProvider() != nil {
		t.Errorf("TracerProvider() = %v, want nil without exporters", service.TracerProvider())
	}
	if err := service.Shutdown(t.Context()); err != nil {
		t.Errorf("telemetry.Shutdown() failed: %v", err)
	}
}

func TestConfigureExporters(t *testing.T) {
	testCases := []struct {
		name               string
		endpoint           string
		tracesEndpoint     string
		wantSpanProcessors int
	}{
		{
			name:               "no processors",
			wantSpanProcessors: 0,
		},
		{
			name:               "OTEL_EXPORTER_OTLP_ENDPOINT",
			endpoint:           "http://localhost:4318",
			wantSpanProcessors: 1,
		},
		{
			name:               "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
			tracesEndpoint:     "http://localhost:4318/v1/traces",
			wantSpanProcessors: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tc.endpoint)
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", tc.tracesEndpoint)

			spanProcessors, err := configureExporters(t.Context())
			if err != nil {
				t.Fatalf("configureExporters() unexpected error: %v", err)
			}
			if len(spanProcessors) != tc.wantSpanProcessors {
				t.Errorf("got %d span processors, want %d", len(spanProcessors), tc.wantSpanProcessors)
			}
		})
	}
}

func TestRecorderEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	recorder := NewRecorder(tp)

	runCtx, runSpan := recorder.StartRun(t.Context(), "run-1", 2, 4)
	sessCtx, sessSpan := recorder.StartSession(runCtx, "sess-1", 3)
	started := time.Now().Add(-time.Second)
	recorder.RecordTurn(sessCtx, 0, 2, started, time.Now(), evaluation.Results{
		evaluation.MetricHelpfulness: {Value: 0.9, Passed: true},
	}, errors.New("turn went wrong"))
	recorder.EndSession(sessSpan, "COMPLETED", 1, nil)
	recorder.EndRun(runSpan, 0.5, nil)

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}

	// Simple processor exports in End order: turn, session, run.
	gotNames := []string{spans[0].Name, spans[1].Name, spans[2].Name}
	wantNames := []string{"evaluation.turn", "evaluation.session", "evaluation.run"}
	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Fatalf("span names mismatch (-want +got):\n%s", diff)
	}

	turnSpan := spans[0]
	if got, ok := attrValue(turnSpan.Attributes, "dialogbench.score.helpfulness"); !ok || got.AsFloat64() != 0.9 {
		t.Errorf("turn span score attribute = %v (present %t), want 0.9", got, ok)
	}
	if got, ok := attrValue(turnSpan.Attributes, "dialogbench.attempts"); !ok || got.AsInt64() != 2 {
		t.Errorf("turn span attempts attribute = %v (present %t), want 2", got, ok)
	}
	if len(turnSpan.Events) == 0 {
		t.Errorf("turn span has no events, want recorded error")
	}
	if !turnSpan.StartTime.Equal(started) {
		t.Errorf("turn span start = %v, want %v", turnSpan.StartTime, started)
	}

	if got, ok := attrValue(spans[1].Attributes, "dialogbench.session_status"); !ok || got.AsString() != "COMPLETED" {
		t.Errorf("session span status attribute = %v (present %t), want COMPLETED", got, ok)
	}
	if got, ok := attrValue(spans[2].Attributes, "dialogbench.success_rate"); !ok || got.AsFloat64() != 0.5 {
		t.Errorf("run span success rate attribute = %v (present %t), want 0.5", got, ok)
	}
}

func TestRecorderNilProvider(t *testing.T) {
	recorder := NewRecorder(nil)

	ctx, span := recorder.StartRun(t.Context(), "run-1", 1, 1)
	recorder.RecordTurn(ctx, 0, 1, time.Now(), time.Now(), nil, nil)
	recorder.EndRun(span, 1, nil)
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func extractResourceAttributes(res *resource.Resource) (string, string) {
	var serviceName string
	var serviceVersion string

	for _, attr := range res.Attributes() {
		switch attr.Key {
		case semconv.ServiceNameKey:
			serviceName = attr.Value.AsString()
		case semconv.ServiceVersionKey:
			serviceVersion = attr.Value.AsString()
		}
	}

	return serviceName, serviceVersion
}
