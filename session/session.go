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

// Package session executes multi-turn dialogue sessions against an agent
// and scores each turn.
//
// A [Spec] scripts the turns; the [Executor] runs them strictly in order,
// carrying the conversational context forward, and produces an immutable
// [Session] record. Sessions are private to their executor: nothing is
// shared across concurrently running sessions except the hook registry.
package session

import (
	"time"

	"github.com/dialogbench/dialogbench/evaluation"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusPending means the session has not started executing.
	StatusPending Status = "PENDING"
	// StatusRunning means turns are executing. Entered exactly once.
	StatusRunning Status = "RUNNING"
	// StatusCompleted means every turn ran to the end, errored or not.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed means the session stopped early: aborted by the
	// consecutive-failure policy or cut off by the run deadline.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TurnSpec scripts one turn of a session.
type TurnSpec struct {
	// Input is the user message sent to the agent.
	Input string `json:"input" yaml:"input"`
	// Expected is the reference response evaluators may compare against.
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	// Metadata is passed through to the evaluator.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Spec scripts a whole session.
type Spec struct {
	// ID uniquely identifies the session within a run.
	ID string `json:"id" yaml:"id"`
	// Evaluator optionally names a registered evaluator kind for this
	// session. Empty means the run-wide adapter scores it.
	Evaluator string `json:"evaluator,omitempty" yaml:"evaluator,omitempty"`
	// EvaluatorOptions configure the named evaluator.
	EvaluatorOptions map[string]any `json:"evaluator_options,omitempty" yaml:"evaluator_options,omitempty"`
	// Turns run strictly in order.
	Turns []TurnSpec `json:"turns" yaml:"turns"`
	// Metadata is carried into the session record untouched.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Turn is the executed record of one TurnSpec.
type Turn struct {
	Index     int
	Input     string
	Expected  string
	Response  string
	Scores    evaluation.Results
	Attempts  int
	StartedAt time.Time
	Latency   time.Duration
	Err       error
}

// Passed reports whether the turn ran without error and every measured
// metric passed. A turn with no scores never passes.
func (t *Turn) Passed() bool {
	if t.Err != nil || len(t.Scores) == 0 {
		return false
	}
	for _, score := range t.Scores {
		if !score.Passed {
			return false
		}
	}
	return true
}

// Session is the executed record of a Spec. It must not be mutated once the
// status is terminal.
type Session struct {
	ID       string
	Status   Status
	Turns    []Turn
	Metadata map[string]any

	// Context is the final conversational context: the union of all
	// context deltas the agent returned, later writes winning.
	Context map[string]any

	// Aggregates holds the per-metric mean over this session's turns.
	Aggregates map[evaluation.MetricType]float64

	StartedAt time.Time
	Duration  time.Duration

	// Err is the terminal error for failed sessions.
	Err error
}

// PassedTurns counts turns that passed.
func (s *Session) PassedTurns() int {
	n := 0
	for i := range s.Turns {
		if s.Turns[i].Passed() {
			n++
		}
	}
	return n
}

// FailedTurns counts turns that did not pass.
func (s *Session) FailedTurns() int {
	return len(s.Turns) - s.PassedTurns()
}
