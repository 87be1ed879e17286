// Copyright 2025 Google LLC
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

// Package storage persists evaluation run records.
//
// A [RunRecord] is the durable artifact of one evaluation run: the
// aggregate metrics, the gate verdict, and flattened per-session outcomes.
// Stored records double as the regression baseline source: the gate
// compares new runs against [Storage.RecentBaselines].
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/hook"
	"github.com/dialogbench/dialogbench/runner"
	"github.com/dialogbench/dialogbench/session"
)

// ErrNotFound is returned when a requested run record does not exist.
var ErrNotFound = errors.New("storage: run not found")

// ErrInvalidRecord is returned when a record without a run ID is saved.
var ErrInvalidRecord = errors.New("storage: record requires a run id")

// SessionRecord is the flattened outcome of one session within a run.
type SessionRecord struct {
	ID          string                            `json:"id"`
	Status      session.Status                    `json:"status"`
	TotalTurns  int                               `json:"total_turns"`
	PassedTurns int                               `json:"passed_turns"`
	FailedTurns int                               `json:"failed_turns"`
	Aggregates  map[evaluation.MetricType]float64 `json:"aggregates,omitempty"`
	Duration    time.Duration                     `json:"duration"`
	Error       string                            `json:"error,omitempty"`
}

// RunRecord is the persisted artifact of one evaluation run. Given the same
// inputs it is reproducible byte for byte, modulo CreatedAt.
type RunRecord struct {
	RunID              string          `json:"run_id"`
	CreatedAt          time.Time       `json:"created_at"`
	Status             string          `json:"status"`
	Metrics            gate.Metrics    `json:"metrics"`
	GateVerdict        *gate.Verdict   `json:"gate_verdict,omitempty"`
	RegressionDetected bool            `json:"regression_detected"`
	HookSummary        hook.Summary    `json:"hook_summary"`
	Sessions           []SessionRecord `json:"sessions"`
}

// NewRunRecord flattens a finished evaluation run into its persisted form.
// The verdict may be nil for runs that were never gated.
func NewRunRecord(result *runner.EvaluationResult, verdict *gate.Verdict, status string) *RunRecord {
	record := &RunRecord{
		RunID:       result.RunID,
		CreatedAt:   result.StartedAt,
		Status:      status,
		Metrics:     result.GateMetrics(),
		GateVerdict: verdict,
		HookSummary: result.HookSummary,
		Sessions:    make([]SessionRecord, 0, len(result.Sessions)),
	}
	if verdict != nil {
		record.RegressionDetected = verdict.RegressionDetected
	}
	for _, s := range result.Sessions {
		sr := SessionRecord{
			ID:          s.ID,
			Status:      s.Status,
			TotalTurns:  len(s.Turns),
			PassedTurns: s.PassedTurns(),
			FailedTurns: s.FailedTurns(),
			Aggregates:  s.Aggregates,
			Duration:    s.Duration,
		}
		if s.Err != nil {
			sr.Error = s.Err.Error()
		}
		record.Sessions = append(record.Sessions, sr)
	}
	return record
}

// Baseline projects the record onto the gate's regression reference.
func (r *RunRecord) Baseline() gate.Baseline {
	return gate.Baseline{
		RecordedAt:    r.CreatedAt,
		SuccessRate:   r.Metrics.SuccessRate,
		AverageScores: r.Metrics.AverageScores,
		ExecutionTime: r.Metrics.ExecutionTime,
	}
}

// Storage persists run records. Implementations must be safe for concurrent
// use.
type Storage interface {
	// SaveRun stores a record, overwriting any record with the same run ID.
	SaveRun(ctx context.Context, record *RunRecord) error

	// GetRun returns the record for runID or ErrNotFound.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns up to limit records, newest first. A limit of zero
	// or less returns everything.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// RecentBaselines returns the baselines of the n newest records,
	// newest first. Fewer records than n is not an error.
	RecentBaselines(ctx context.Context, n int) ([]gate.Baseline, error)
}
