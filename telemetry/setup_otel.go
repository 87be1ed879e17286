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
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.36.0"
)

func configure(ctx context.Context, opts ...Option) (*config, error) {
	cfg := &config{}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	var err error
	cfg.resource, err = resolveResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resource: %w", err)
	}

	spanProcessors, err := configureExporters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to configure exporters: %w", err)
	}
	cfg.spanProcessors = append(cfg.spanProcessors, spanProcessors...)

	return cfg, nil
}

func newInternal(cfg *config) (*providers, error) {
	return &providers{tracerProvider: initTracerProvider(cfg)}, nil
}

// providers implements [Service].
type providers struct {
	tracerProvider *sdktrace.TracerProvider
}

func (p *providers) SetGlobalOtelProviders() {
	if p.tracerProvider != nil {
		otel.SetTracerProvider(p.tracerProvider)
	}
}

func (p *providers) TracerProvider() *sdktrace.TracerProvider {
	return p.tracerProvider
}

func (p *providers) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}

// resolveResource creates a new resource with attributes specified in the
// following order (later attributes override earlier ones):
//  1. [resource.Default()] populates the resource labels from environment
//     variables like OTEL_SERVICE_NAME and OTEL_RESOURCE_ATTRIBUTES.
//  2. The service name from config, if present.
//  3. Resource from config, if present.
func resolveResource(ctx context.Context, cfg *config) (*resource.Resource, error) {
	r := resource.Default()

	if cfg.serviceName != "" {
		named, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.serviceName),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to create named resource: %w", err)
		}
		r, err = resource.Merge(r, named)
		if err != nil {
			return nil, fmt.Errorf("failed to merge named resource: %w", err)
		}
	}
	if cfg.resource != nil {
		var err error
		r, err = resource.Merge(r, cfg.resource)
		if err != nil {
			return nil, fmt.Errorf("failed to merge with config resource: %w", err)
		}
	}
	return r, nil
}

// configureExporters initializes OTel exporters from environment variables.
func configureExporters(ctx context.Context) ([]sdktrace.SpanProcessor, error) {
	var spanProcessors []sdktrace.SpanProcessor

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelTracesEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if otelEndpoint != "" || otelTracesEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		spanProcessors = append(spanProcessors, sdktrace.NewBatchSpanProcessor(exporter))
	}
	return spanProcessors, nil
}

func initTracerProvider(cfg *config) *sdktrace.TracerProvider {
	if cfg.tracerProvider != nil {
		return cfg.tracerProvider
	}
	if len(cfg.spanProcessors) == 0 {
		return nil
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(cfg.resource),
	}
	for _, p := range cfg.spanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	return sdktrace.NewTracerProvider(opts...)
}
