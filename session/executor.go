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

package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dialogbench/dialogbench/agent"
	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/hook"
	"github.com/dialogbench/dialogbench/telemetry"
)

var (
	// ErrTimeout marks a session cut short by the run deadline.
	ErrTimeout = errors.New("session: deadline exceeded")

	// ErrAborted marks a session stopped by the consecutive-failure policy.
	ErrAborted = errors.New("session: aborted after consecutive turn failures")
)

// ExecutorConfig configures an [Executor].
type ExecutorConfig struct {
	// Invoker reaches the agent under evaluation. Required.
	Invoker agent.Invoker

	// Adapter scores each turn. Required.
	Adapter *evaluation.Adapter

	// Hooks receives the lifecycle dispatches. Defaults to an empty
	// registry.
	Hooks *hook.Registry

	// Recorder emits session and turn spans. Defaults to a disabled
	// recorder.
	Recorder *telemetry.Recorder

	// Retry controls transient-failure retries per agent call. The zero
	// value selects [agent.DefaultRetryPolicy].
	Retry agent.RetryPolicy

	// MaxConsecutiveFailures aborts the session once that many turns in a
	// row errored. Zero disables the abort policy.
	MaxConsecutiveFailures int

	// TurnDelay pauses between consecutive turns for rate limiting.
	TurnDelay time.Duration

	// RunID tags hook contexts and spans with the owning run.
	RunID string
}

// Executor runs sessions turn by turn. One executor runs one session at a
// time; the runner creates an executor per concurrent session.
type Executor struct {
	cfg ExecutorConfig
}

// NewExecutor validates the config and returns an executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("session: invoker is required")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("session: adapter is required")
	}
	if cfg.MaxConsecutiveFailures < 0 {
		return nil, fmt.Errorf("session: max consecutive failures must not be negative, got %d", cfg.MaxConsecutiveFailures)
	}
	if cfg.TurnDelay < 0 {
		return nil, fmt.Errorf("session: turn delay must not be negative, got %v", cfg.TurnDelay)
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hook.NewRegistry()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = telemetry.NewRecorder(nil)
	}
	if cfg.Retry == (agent.RetryPolicy{}) {
		cfg.Retry = agent.DefaultRetryPolicy()
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	return &Executor{cfg: cfg}, nil
}

// Run executes the spec and returns the finished session. The session is
// always returned, terminal, with every finalized turn preserved; errors
// are recorded on it rather than returned.
//
// Lifecycle: PRE_SESSION → per turn (PRE_TURN → agent → adapter → context
// merge → POST_TURN, or ERROR_HANDLER when the turn errored) → aggregates →
// terminal status → POST_SESSION. POST_SESSION runs exactly once no matter
// how the session terminated.
func (e *Executor) Run(ctx context.Context, spec Spec) *Session {
	sess := &Session{
		ID:       spec.ID,
		Status:   StatusPending,
		Metadata: spec.Metadata,
		Context:  make(map[string]any),
	}

	sessHctx := hook.NewContext(map[string]any{
		hook.KeyRunID:     e.cfg.RunID,
		hook.KeySessionID: spec.ID,
		hook.KeyTurnCount: len(spec.Turns),
	})
	e.cfg.Hooks.Dispatch(ctx, hook.TypePreSession, sessHctx)

	sess.Status = StatusRunning
	sess.StartedAt = time.Now()
	log.Debug().Str("session_id", spec.ID).Int("turn_count", len(spec.Turns)).Msg("session started")

	sessCtx, span := e.cfg.Recorder.StartSession(ctx, spec.ID, len(spec.Turns))

	consecutive := 0
	for i, turnSpec := range spec.Turns {
		if ctx.Err() != nil {
			sess.Err = fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
			break
		}

		turn := e.runTurn(sessCtx, sess, i, len(spec.Turns), turnSpec)
		sess.Turns = append(sess.Turns, turn)

		if turn.Err != nil {
			consecutive++
			if e.cfg.MaxConsecutiveFailures > 0 && consecutive >= e.cfg.MaxConsecutiveFailures {
				sess.Err = fmt.Errorf("%w: %d failures ending at turn %d", ErrAborted, consecutive, i)
				break
			}
		} else {
			consecutive = 0
		}

		if e.cfg.TurnDelay > 0 && i < len(spec.Turns)-1 {
			if err := wait(ctx, e.cfg.TurnDelay); err != nil {
				// The deadline check at the top of the loop records it.
				continue
			}
		}
	}

	sess.Aggregates = aggregateScores(sess.Turns)
	if sess.Err != nil {
		sess.Status = StatusFailed
	} else {
		sess.Status = StatusCompleted
	}
	sess.Duration = time.Since(sess.StartedAt)

	e.cfg.Recorder.EndSession(span, string(sess.Status), sess.FailedTurns(), sess.Err)
	e.finishLog(sess)

	// POST_SESSION must observe the terminal session even when the run
	// deadline already lapsed.
	setValue(sessHctx, hook.KeyStatus, string(sess.Status))
	setValue(sessHctx, hook.KeyAggregates, sess.Aggregates)
	if sess.Err != nil {
		setValue(sessHctx, hook.KeyError, sess.Err.Error())
	}
	e.cfg.Hooks.Dispatch(context.WithoutCancel(ctx), hook.TypePostSession, sessHctx)

	return sess
}

func (e *Executor) runTurn(ctx context.Context, sess *Session, index, total int, spec TurnSpec) Turn {
	turn := Turn{
		Index:     index,
		Input:     spec.Input,
		Expected:  spec.Expected,
		StartedAt: time.Now(),
	}

	hctx := hook.NewContext(map[string]any{
		hook.KeyRunID:     e.cfg.RunID,
		hook.KeySessionID: sess.ID,
		hook.KeyTurnIndex: index,
		hook.KeyTurnCount: total,
		hook.KeyInput:     spec.Input,
	})
	e.cfg.Hooks.Dispatch(ctx, hook.TypePreTurn, hctx)

	req := agent.Request{
		SessionID: sess.ID,
		Turn:      index,
		Input:     spec.Input,
		Context:   snapshot(sess.Context),
	}
	resp, attempts, err := e.invoke(ctx, req)
	turn.Attempts = attempts

	if err != nil {
		turn.Err = fmt.Errorf("invoke agent: %w", err)
		turn.Scores = e.cfg.Adapter.Zero()
	} else {
		turn.Response = resp.Output
		sess.Context[fmt.Sprintf("turn_%d_response", index)] = resp.Output
		maps.Copy(sess.Context, resp.ContextDelta)

		outcome := e.cfg.Adapter.Score(ctx, evaluation.Params{
			Input:    spec.Input,
			Response: resp.Output,
			Expected: spec.Expected,
			Metadata: spec.Metadata,
		})
		turn.Scores = outcome.Results
		turn.Err = outcome.Err
	}
	turn.Latency = time.Since(turn.StartedAt)

	e.cfg.Recorder.RecordTurn(ctx, index, attempts, turn.StartedAt, turn.StartedAt.Add(turn.Latency), turn.Scores, turn.Err)

	// The post hooks share the pre hooks' context and see the finalized
	// turn. An errored turn dispatches ERROR_HANDLER in place of POST_TURN.
	setValue(hctx, hook.KeyTurn, turn)
	if turn.Err != nil {
		setValue(hctx, hook.KeyError, turn.Err.Error())
		e.cfg.Hooks.Dispatch(ctx, hook.TypeErrorHandler, hctx)
	} else {
		e.cfg.Hooks.Dispatch(ctx, hook.TypePostTurn, hctx)
	}
	return turn
}

// invoke shields the session from a panicking invoker; the panic becomes a
// permanent turn error so sibling sessions keep running.
func (e *Executor) invoke(ctx context.Context, req agent.Request) (resp *agent.Response, attempts int, err error) {
	defer func() {
		if v := recover(); v != nil {
			if attempts == 0 {
				attempts = 1
			}
			resp, err = nil, fmt.Errorf("agent panicked: %v", v)
		}
	}()
	return agent.Do(ctx, e.cfg.Invoker, req, e.cfg.Retry)
}

func (e *Executor) finishLog(sess *Session) {
	evt := log.Debug()
	if sess.Err != nil {
		evt = log.Warn().Err(sess.Err)
	}
	evt.Str("session_id", sess.ID).
		Str("status", string(sess.Status)).
		Int("passed_turns", sess.PassedTurns()).
		Int("failed_turns", sess.FailedTurns()).
		Dur("duration", sess.Duration).
		Msg("session finished")
}

// aggregateScores computes the per-metric mean over the given turns.
func aggregateScores(turns []Turn) map[evaluation.MetricType]float64 {
	sums := make(map[evaluation.MetricType]float64)
	counts := make(map[evaluation.MetricType]int)
	for i := range turns {
		for metric, score := range turns[i].Scores {
			sums[metric] += score.Value
			counts[metric]++
		}
	}
	averages := make(map[evaluation.MetricType]float64, len(sums))
	for metric, sum := range sums {
		averages[metric] = sum / float64(counts[metric])
	}
	return averages
}

// setValue writes a harness-owned hook context key. These writes only fail
// when a hook retyped the key first, which the hook contract forbids; the
// session must survive that, so the violation is logged and skipped.
func setValue(hctx *hook.Context, key string, value any) {
	if err := hctx.Set(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("hook context write rejected")
	}
}

func snapshot(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
