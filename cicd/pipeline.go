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

// Package cicd gates finished evaluation runs for continuous integration.
//
// A [Pipeline] takes one aggregated run, evaluates the quality gate against
// the recent run history, persists the record, renders reports, and emits
// platform outputs for GitHub Actions or GitLab CI. A run that passes its
// gate but regresses against history is reported as a warning, not a
// failure.
package cicd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/hook"
	"github.com/dialogbench/dialogbench/report"
	"github.com/dialogbench/dialogbench/runner"
	"github.com/dialogbench/dialogbench/storage"
)

// DefaultHistoryWindow is how many prior runs form the regression baseline.
const DefaultHistoryWindow = 3

// Status is the pipeline outcome.
type Status string

const (
	// StatusPassed means the gate passed with no regression.
	StatusPassed Status = "passed"
	// StatusWarning means the gate passed but the run regressed against
	// the baseline.
	StatusWarning Status = "warning"
	// StatusFailed means at least one gate check failed.
	StatusFailed Status = "failed"
)

// ExitCode maps the status to a process exit code: only a failed gate is
// non-zero.
func (s Status) ExitCode() int {
	if s == StatusFailed {
		return 1
	}
	return 0
}

// Config configures a [Pipeline].
type Config struct {
	// Gate holds the quality thresholds.
	Gate gate.Config

	// HistoryWindow is how many recent runs to average into the
	// regression baseline. Zero selects DefaultHistoryWindow.
	HistoryWindow int

	// Platform selects the CI platform output, if any.
	Platform Platform

	// OutputDir receives report files. Empty disables report writing.
	OutputDir string

	// OutputFormat is the report format. Defaults to JSON.
	OutputFormat report.Format

	// SkipIntegrationHooks suppresses the INTEGRATION_TEST dispatch.
	SkipIntegrationHooks bool
}

// Result is the pipeline outcome for one run.
type Result struct {
	Status     Status
	Verdict    *gate.Verdict
	Record     *storage.RunRecord
	Baseline   *gate.Baseline
	ReportPath string
}

// Pipeline gates evaluation runs. Create one with [New].
type Pipeline struct {
	cfg   Config
	store storage.Storage
	hooks *hook.Registry
}

// New validates the configuration and creates a pipeline. The store holds
// the run history; hooks may be nil when no INTEGRATION_TEST hooks are
// registered.
func New(cfg Config, store storage.Storage, hooks *hook.Registry) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("cicd: a storage backend is required")
	}
	if err := cfg.Gate.Validate(); err != nil {
		return nil, err
	}
	if cfg.HistoryWindow < 0 {
		return nil, fmt.Errorf("cicd: history window must not be negative, got %d", cfg.HistoryWindow)
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = report.FormatJSON
	}
	if err := cfg.Platform.validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = hook.NewRegistry()
	}
	return &Pipeline{cfg: cfg, store: store, hooks: hooks}, nil
}

// Run gates one finished evaluation run. The record is persisted and
// reports are written before the status is returned; platform outputs are
// best effort and only logged on failure.
func (p *Pipeline) Run(ctx context.Context, result *runner.EvaluationResult) (*Result, error) {
	if result == nil {
		return nil, fmt.Errorf("cicd: an evaluation result is required")
	}

	if !p.cfg.SkipIntegrationHooks {
		hctx := hook.NewContext(map[string]any{
			hook.KeyRunID:       result.RunID,
			hook.KeySuccessRate: result.SuccessRate,
		})
		p.hooks.Dispatch(ctx, hook.TypeIntegrationTest, hctx)
	}

	baselines, err := p.store.RecentBaselines(ctx, p.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("cicd: load baselines: %w", err)
	}
	baseline := gate.MergeBaselines(baselines)

	verdict := gate.Evaluate(result.GateMetrics(), p.cfg.Gate, baseline)
	status := statusOf(verdict)

	record := storage.NewRunRecord(result, verdict, string(status))
	if err := p.store.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("cicd: persist run: %w", err)
	}

	out := &Result{
		Status:   status,
		Verdict:  verdict,
		Record:   record,
		Baseline: baseline,
	}

	if p.cfg.OutputDir != "" {
		path, err := report.Write(p.cfg.OutputDir, p.cfg.OutputFormat, record)
		if err != nil {
			return nil, err
		}
		out.ReportPath = path
	}

	if err := p.cfg.Platform.emit(record); err != nil {
		log.Warn().Err(err).Str("platform", string(p.cfg.Platform)).
			Msg("CI platform output not written")
	}

	p.logOutcome(out, result.Duration)
	return out, nil
}

func statusOf(verdict *gate.Verdict) Status {
	switch {
	case !verdict.Passed:
		return StatusFailed
	case verdict.RegressionDetected:
		return StatusWarning
	default:
		return StatusPassed
	}
}

func (p *Pipeline) logOutcome(result *Result, duration time.Duration) {
	evt := log.Info()
	if result.Status != StatusPassed {
		evt = log.Warn()
	}
	evt.Str("run_id", result.Record.RunID).
		Str("status", string(result.Status)).
		Bool("regression", result.Verdict.RegressionDetected).
		Int("failed_checks", len(result.Verdict.FailedChecks())).
		Dur("duration", duration).
		Msg("quality gate evaluated")
}
