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

// Package telemetry contains OpenTelemetry related functionality for the
// evaluation harness.
package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Service wraps the telemetry providers and implements functions for
// telemetry lifecycle management.
type Service interface {
	// SetGlobalOtelProviders registers the configured providers as the global OTel providers.
	SetGlobalOtelProviders()

	// TracerProvider returns the configured TracerProvider or nil when no
	// exporter is configured.
	TracerProvider() *sdktrace.TracerProvider

	// Shutdown shuts down underlying OTel providers.
	Shutdown(ctx context.Context) error
}

// New initializes a new telemetry service and its underlying TracerProvider.
// Options can be used to customize the defaults, e.g. add SpanProcessors or
// use a preconfigured TracerProvider. Without options, exporters are
// configured from the standard OTEL_EXPORTER_OTLP_ENDPOINT and
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT environment variables; when neither is
// set and no processors are supplied, tracing stays disabled and
// [Service.TracerProvider] returns nil.
//
// # Usage
//
//	 func main() {
//			ctx := context.Background()
//			telemetryService, err := telemetry.New(ctx,
//				telemetry.WithServiceName("dialogbench"),
//			)
//			if err != nil {
//				log.Fatal(err)
//			}
//			defer func() {
//				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//				defer cancel()
//				if err := telemetryService.Shutdown(shutdownCtx); err != nil {
//					log.Printf("telemetry shutdown failed: %v", err)
//				}
//			}()
//			telemetryService.SetGlobalOtelProviders()
//
//			recorder := telemetry.NewRecorder(telemetryService.TracerProvider())
//
//			// app code
//		}
//
// The caller must call the Shutdown method to gracefully shut down the
// underlying telemetry and release resources.
func New(ctx context.Context, opts ...Option) (Service, error) {
	cfg, err := configure(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return newInternal(cfg)
}
