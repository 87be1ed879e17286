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

// Package runner executes evaluation runs: many dialogue sessions against
// one agent, with bounded parallelism, and aggregates their scores.
package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/dialogbench/dialogbench/agent"
	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/hook"
	"github.com/dialogbench/dialogbench/session"
	"github.com/dialogbench/dialogbench/telemetry"
)

// ErrDeadlineExceeded marks a run cut short by its own timeout. Sessions
// that were still queued or mid-turn when it fired are reported FAILED; the
// returned result is complete for everything that ran.
var ErrDeadlineExceeded = errors.New("runner: evaluation deadline exceeded")

// DefaultWorkers is the session parallelism used when Config.Workers is
// zero.
const DefaultWorkers = 5

// Config is used to create a [Runner].
type Config struct {
	// Specs are the sessions to execute. Required; IDs must be unique.
	Specs []session.Spec

	// Invoker reaches the agent under evaluation. Required.
	Invoker agent.Invoker

	// Adapter scores the sessions whose spec names no evaluator kind.
	// Optional when every spec names one.
	Adapter *evaluation.Adapter

	// Registry resolves evaluator kinds named by specs. Defaults to
	// [evaluation.DefaultRegistry].
	Registry *evaluation.Registry

	// Hooks receives the lifecycle dispatches of the run and of every
	// session in it. Defaults to an empty registry.
	Hooks *hook.Registry

	// Workers bounds how many sessions run concurrently. Zero selects
	// DefaultWorkers.
	Workers int

	// Sequential forces one session at a time, overriding Workers.
	Sequential bool

	// Timeout bounds the whole run. Zero means no deadline.
	Timeout time.Duration

	// RetryPolicy governs transient-failure retries per agent call. The
	// zero value selects [agent.DefaultRetryPolicy].
	RetryPolicy agent.RetryPolicy

	// TurnDelay pauses between consecutive turns within each session.
	TurnDelay time.Duration

	// MaxConsecutiveFailures aborts a session once that many turns in a
	// row errored. Zero disables the abort policy.
	MaxConsecutiveFailures int

	// Recorder emits run, session, and turn spans. Defaults to a disabled
	// recorder.
	Recorder *telemetry.Recorder
}

// New creates a new [Runner].
func New(cfg Config) (*Runner, error) {
	if len(cfg.Specs) == 0 {
		return nil, fmt.Errorf("at least one session spec is required")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("an agent invoker is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}

	seen := make(map[string]bool, len(cfg.Specs))
	for _, spec := range cfg.Specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("session spec without an ID")
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate session ID %q", spec.ID)
		}
		seen[spec.ID] = true
	}

	registry := cfg.Registry
	if registry == nil {
		registry = evaluation.DefaultRegistry
	}
	adapters := make(map[string]*evaluation.Adapter, len(cfg.Specs))
	for _, spec := range cfg.Specs {
		adapter, err := resolveAdapter(spec, cfg.Adapter, registry)
		if err != nil {
			return nil, fmt.Errorf("session %q: %w", spec.ID, err)
		}
		adapters[spec.ID] = adapter
	}

	retry := cfg.RetryPolicy
	if retry == (agent.RetryPolicy{}) {
		retry = agent.DefaultRetryPolicy()
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	if cfg.Sequential {
		workers = 1
	}

	hooks := cfg.Hooks
	if hooks == nil {
		hooks = hook.NewRegistry()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = telemetry.NewRecorder(nil)
	}

	return &Runner{
		specs:                  cfg.Specs,
		invoker:                cfg.Invoker,
		adapters:               adapters,
		hooks:                  hooks,
		workers:                workers,
		timeout:                cfg.Timeout,
		retry:                  retry,
		turnDelay:              cfg.TurnDelay,
		maxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		recorder:               recorder,
	}, nil
}

// resolveAdapter picks the scorer for one spec: the fallback adapter when
// the spec names no evaluator, otherwise a fresh instance of the named kind
// configured with the spec's options.
func resolveAdapter(spec session.Spec, fallback *evaluation.Adapter, registry *evaluation.Registry) (*evaluation.Adapter, error) {
	if spec.Evaluator == "" {
		if fallback == nil {
			return nil, fmt.Errorf("no evaluator named and no run-wide adapter configured")
		}
		return fallback, nil
	}

	required := evaluation.DefaultMetrics()
	if fallback != nil {
		required = fallback.Required()
	}
	evaluator, err := registry.New(spec.Evaluator, evaluation.Config{
		Metrics: required,
		Options: spec.EvaluatorOptions,
	})
	if err != nil {
		return nil, err
	}
	return evaluation.NewAdapter(evaluator, required)
}

// Runner executes every configured session spec against the agent under
// evaluation, at most workers sessions at a time, and aggregates the scored
// turns of the whole run. A Runner is reusable: each Run call gets a fresh
// run ID and produces an independent result.
type Runner struct {
	specs                  []session.Spec
	invoker                agent.Invoker
	adapters               map[string]*evaluation.Adapter
	hooks                  *hook.Registry
	workers                int
	timeout                time.Duration
	retry                  agent.RetryPolicy
	turnDelay              time.Duration
	maxConsecutiveFailures int
	recorder               *telemetry.Recorder
}

// Run executes all sessions and blocks until every one is terminal or the
// run deadline elapses. The result is complete even when the error is
// non-nil: sessions cut short by the deadline are reported FAILED with
// their finished turns intact, and the aggregate covers everything that
// ran.
func (r *Runner) Run(ctx context.Context) (*EvaluationResult, error) {
	startedAt := time.Now()
	runID := uuid.NewString()

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	log.Debug().
		Str("run_id", runID).
		Int("sessions", len(r.specs)).
		Int("workers", r.workers).
		Msg("evaluation run started")

	hctx := hook.NewContext(map[string]any{
		hook.KeyRunID:        runID,
		hook.KeySessionCount: len(r.specs),
		hook.KeyWorkers:      r.workers,
	})
	r.hooks.Dispatch(runCtx, hook.TypePreEvaluation, hctx)

	runCtx, span := r.recorder.StartRun(runCtx, runID, len(r.specs), r.workers)

	sessions := make([]*session.Session, len(r.specs))
	sem := semaphore.NewWeighted(int64(r.workers))
	var wg sync.WaitGroup
	for i, spec := range r.specs {
		if err := sem.Acquire(runCtx, 1); err != nil {
			sessions[i] = neverStarted(spec, err)
			continue
		}
		wg.Add(1)
		go func(i int, spec session.Spec) {
			defer wg.Done()
			defer sem.Release(1)
			// One panicking session must not take down the run.
			defer func() {
				if rec := recover(); rec != nil {
					sessions[i] = neverStarted(spec, fmt.Errorf("session panicked: %v", rec))
				}
			}()
			sessions[i] = r.runSession(runCtx, runID, spec)
		}(i, spec)
	}
	wg.Wait()

	slices.SortFunc(sessions, func(a, b *session.Session) int {
		return strings.Compare(a.ID, b.ID)
	})

	result := r.buildResult(runID, startedAt, sessions)

	var runErr error
	switch {
	case ctx.Err() != nil:
		runErr = ctx.Err()
	case runCtx.Err() != nil:
		runErr = fmt.Errorf("%w after %s", ErrDeadlineExceeded, r.timeout)
	}

	r.recorder.EndRun(span, result.SuccessRate, runErr)

	// POST_EVALUATION shares the run-level hook context with
	// PRE_EVALUATION and must fire even when the deadline already lapsed.
	setValue(hctx, hook.KeySuccessRate, result.SuccessRate)
	setValue(hctx, hook.KeyAggregates, result.AverageScores)
	if runErr != nil {
		setValue(hctx, hook.KeyError, runErr.Error())
	}
	r.hooks.Dispatch(context.WithoutCancel(ctx), hook.TypePostEvaluation, hctx)

	result.HookSummary = r.hooks.Log().Summary()
	r.finishLog(result, runErr)

	return result, runErr
}

func (r *Runner) runSession(ctx context.Context, runID string, spec session.Spec) *session.Session {
	exec, err := session.NewExecutor(session.ExecutorConfig{
		Invoker:                r.invoker,
		Adapter:                r.adapters[spec.ID],
		Hooks:                  r.hooks,
		Recorder:               r.recorder,
		Retry:                  r.retry,
		MaxConsecutiveFailures: r.maxConsecutiveFailures,
		TurnDelay:              r.turnDelay,
		RunID:                  runID,
	})
	if err != nil {
		// New validated everything the executor checks.
		return neverStarted(spec, err)
	}
	return exec.Run(ctx, spec)
}

// neverStarted reports a session whose worker slot never freed, or whose
// executor blew up, before the first turn. No lifecycle hooks fire for it:
// the session never reached PRE_SESSION.
func neverStarted(spec session.Spec, cause error) *session.Session {
	err := fmt.Errorf("session never started: %w", cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: session never started", session.ErrTimeout)
	}
	return &session.Session{
		ID:       spec.ID,
		Status:   session.StatusFailed,
		Metadata: spec.Metadata,
		Err:      err,
	}
}

func (r *Runner) buildResult(runID string, startedAt time.Time, sessions []*session.Session) *EvaluationResult {
	result := &EvaluationResult{
		RunID:         runID,
		StartedAt:     startedAt,
		Sessions:      sessions,
		TotalSessions: len(sessions),
		AverageScores: averageScores(sessions),
	}
	for _, s := range sessions {
		result.TotalTurns += len(s.Turns)
		result.PassedTurns += s.PassedTurns()
	}
	result.FailedTurns = result.TotalTurns - result.PassedTurns
	if result.TotalTurns > 0 {
		result.SuccessRate = float64(result.PassedTurns) / float64(result.TotalTurns)
	}
	result.Duration = time.Since(startedAt)
	return result
}

// averageScores means every metric over all executed turns, so a session
// with more turns weighs proportionally more. Turns that never ran
// contribute nothing; turns that errored carry zeroed scores and drag the
// mean down.
func averageScores(sessions []*session.Session) map[evaluation.MetricType]float64 {
	sums := make(map[evaluation.MetricType]float64)
	counts := make(map[evaluation.MetricType]int)
	for _, s := range sessions {
		for i := range s.Turns {
			for metric, score := range s.Turns[i].Scores {
				sums[metric] += score.Value
				counts[metric]++
			}
		}
	}
	averages := make(map[evaluation.MetricType]float64, len(sums))
	for metric, sum := range sums {
		averages[metric] = sum / float64(counts[metric])
	}
	return averages
}

func (r *Runner) finishLog(result *EvaluationResult, runErr error) {
	evt := log.Info()
	if runErr != nil {
		evt = log.Warn().Err(runErr)
	}
	evt.Str("run_id", result.RunID).
		Int("sessions", result.TotalSessions).
		Int("passed_turns", result.PassedTurns).
		Int("failed_turns", result.FailedTurns).
		Float64("success_rate", result.SuccessRate).
		Dur("duration", result.Duration).
		Msg("evaluation run finished")
}

// setValue writes a harness-owned hook context key; a rejected write means
// a hook retyped the key, which is logged and skipped.
func setValue(hctx *hook.Context, key string, value any) {
	if err := hctx.Set(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("hook context write rejected")
	}
}

// EvaluationResult is the aggregate outcome of one run.
type EvaluationResult struct {
	RunID         string                             `json:"run_id"`
	StartedAt     time.Time                          `json:"started_at"`
	Duration      time.Duration                      `json:"duration"`
	Sessions      []*session.Session                 `json:"sessions"`
	TotalSessions int                                `json:"total_sessions"`
	TotalTurns    int                                `json:"total_turns"`
	PassedTurns   int                                `json:"passed_turns"`
	FailedTurns   int                                `json:"failed_turns"`
	SuccessRate   float64                            `json:"success_rate"`
	AverageScores map[evaluation.MetricType]float64 `json:"average_scores"`
	HookSummary   hook.Summary                       `json:"hook_summary"`
}

// GateMetrics converts the aggregate into the quality gate's input.
func (r *EvaluationResult) GateMetrics() gate.Metrics {
	return gate.Metrics{
		TotalSessions: r.TotalSessions,
		TotalTurns:    r.TotalTurns,
		PassedTurns:   r.PassedTurns,
		FailedTurns:   r.FailedTurns,
		SuccessRate:   r.SuccessRate,
		AverageScores: r.AverageScores,
		ExecutionTime: r.Duration,
	}
}
