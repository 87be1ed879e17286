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
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dialogbench/dialogbench/evaluation"
)

// tracerName identifies spans emitted by the evaluation harness.
const tracerName = "dialogbench"

// Recorder emits evaluation spans: one per run, one per session, and one per
// turn. Turn spans carry the metric scores as attributes so trace backends
// can chart score distributions without touching stored results.
type Recorder struct {
	tracer trace.Tracer
}

// NewRecorder returns a Recorder backed by tp. A nil provider yields a
// recorder whose spans are never sampled or exported, so callers do not
// need to special-case disabled telemetry.
func NewRecorder(tp *sdktrace.TracerProvider) *Recorder {
	if tp == nil {
		return &Recorder{tracer: noop.NewTracerProvider().Tracer(tracerName)}
	}
	return &Recorder{tracer: tp.Tracer(tracerName)}
}

// StartRun opens the root span for an evaluation run.
func (r *Recorder) StartRun(ctx context.Context, runID string, sessionCount, workers int) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.String("dialogbench.run_id", runID),
		attribute.Int("dialogbench.session_count", sessionCount),
		attribute.Int("dialogbench.workers", workers),
	))
}

// EndRun closes the run span with the final success rate.
func (r *Recorder) EndRun(span trace.Span, successRate float64, err error) {
	span.SetAttributes(attribute.Float64("dialogbench.success_rate", successRate))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartSession opens a span for one dialogue session.
func (r *Recorder) StartSession(ctx context.Context, sessionID string, turnCount int) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "evaluation.session", trace.WithAttributes(
		attribute.String("dialogbench.session_id", sessionID),
		attribute.Int("dialogbench.turn_count", turnCount),
	))
}

// EndSession closes a session span with the terminal status.
func (r *Recorder) EndSession(span trace.Span, status string, failedTurns int, err error) {
	span.SetAttributes(
		attribute.String("dialogbench.session_status", status),
		attribute.Int("dialogbench.failed_turns", failedTurns),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordTurn emits a span for a completed turn using its measured start and
// end times.
func (r *Recorder) RecordTurn(ctx context.Context, index, attempts int, startedAt, endedAt time.Time, results evaluation.Results, turnErr error) {
	_, span := r.tracer.Start(ctx, "evaluation.turn",
		trace.WithTimestamp(startedAt),
		trace.WithAttributes(
			attribute.Int("dialogbench.turn_index", index),
			attribute.Int("dialogbench.attempts", attempts),
		),
	)
	span.SetAttributes(scoreAttributes(results)...)
	if turnErr != nil {
		span.RecordError(turnErr)
		span.SetStatus(codes.Error, turnErr.Error())
	}
	span.End(trace.WithTimestamp(endedAt))
}

func scoreAttributes(results evaluation.Results) []attribute.KeyValue {
	metrics := make([]string, 0, len(results))
	for metric := range results {
		metrics = append(metrics, string(metric))
	}
	sort.Strings(metrics)

	attrs := make([]attribute.KeyValue, 0, len(metrics))
	for _, metric := range metrics {
		score := results[evaluation.MetricType(metric)]
		attrs = append(attrs, attribute.Float64("dialogbench.score."+metric, score.Value))
	}
	return attrs
}
