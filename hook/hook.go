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

// Package hook provides the lifecycle hook registry for evaluation runs.
//
// Hooks are callbacks registered for one of nine lifecycle points and fired
// by the orchestration layers as an evaluation progresses. Dispatch order is
// deterministic: ascending priority, ties broken by registration order. A
// failing hook is recorded and never prevents the remaining hooks of the
// same lifecycle point from running.
package hook

import (
	"context"
	"time"
)

// Type identifies a lifecycle point at which hooks are dispatched.
type Type string

const (
	// TypePreEvaluation fires once before any session starts.
	TypePreEvaluation Type = "PRE_EVALUATION"

	// TypePreSession fires before each session's first turn.
	TypePreSession Type = "PRE_SESSION"

	// TypePreTurn fires before each turn is sent to the agent.
	TypePreTurn Type = "PRE_TURN"

	// TypePostTurn fires after a turn has been finalized. It is skipped for
	// turns that end with an error; TypeErrorHandler fires in its place.
	TypePostTurn Type = "POST_TURN"

	// TypePostSession fires exactly once per session after it reaches a
	// terminal status, regardless of how the session terminated.
	TypePostSession Type = "POST_SESSION"

	// TypePostEvaluation fires once after every session is terminal or the
	// run deadline has elapsed.
	TypePostEvaluation Type = "POST_EVALUATION"

	// TypeErrorHandler fires when a turn or session fails, in place of the
	// normal completion hook. Its results are advisory and never veto
	// continuation of the session.
	TypeErrorHandler Type = "ERROR_HANDLER"

	// TypeIntegrationTest is dispatched only by explicit request, e.g. by
	// the CI pipeline before gating a run.
	TypeIntegrationTest Type = "INTEGRATION_TEST"

	// TypeCustom is dispatched only by explicit request.
	TypeCustom Type = "CUSTOM"
)

// AllTypes returns all lifecycle types.
func AllTypes() []Type {
	return []Type{
		TypePreEvaluation,
		TypePreSession,
		TypePreTurn,
		TypePostTurn,
		TypePostSession,
		TypePostEvaluation,
		TypeErrorHandler,
		TypeIntegrationTest,
		TypeCustom,
	}
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Valid reports whether t is one of the defined lifecycle types.
func (t Type) Valid() bool {
	switch t {
	case TypePreEvaluation, TypePreSession, TypePreTurn, TypePostTurn,
		TypePostSession, TypePostEvaluation, TypeErrorHandler,
		TypeIntegrationTest, TypeCustom:
		return true
	default:
		return false
	}
}

// Status is the outcome of a single hook invocation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusSkipped Status = "SKIPPED"
)

// Result is the outcome record of one hook invocation. Results are appended
// to the registry's execution log and never mutated afterwards.
type Result struct {
	HookName string         `json:"hook_name"`
	HookType Type           `json:"hook_type"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Func is the callable contract of a hook. A nil *Result with a nil error is
// recorded as a success. A returned error, or a panic, is converted into a
// failure result by the dispatcher; it never propagates to the caller.
type Func func(ctx context.Context, hctx *Context) (*Result, error)

// Hook is a registered lifecycle callback. Name must be unique within Type.
// Lower Priority runs first; hooks with equal priority run in registration
// order.
type Hook struct {
	Name     string
	Type     Type
	Priority int
	Func     Func
}

// Well-known context keys attached by the orchestration layers. Hooks may
// read these and attach their own keys.
const (
	KeyRunID        = "run_id"
	KeySessionID    = "session_id"
	KeySessionCount = "session_count"
	KeyTurnIndex    = "turn_index"
	KeyTurnCount    = "turn_count"
	KeyInput        = "input"
	KeyTurn         = "turn"
	KeyStatus       = "status"
	KeyAggregates   = "aggregates"
	KeyError        = "error"
	KeySuccessRate  = "success_rate"
	KeyWorkers      = "workers"
	KeyMetadata     = "metadata"
)
