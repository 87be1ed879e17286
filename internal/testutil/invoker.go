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

// Package testutil provides shared test doubles for the evaluation harness.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dialogbench/dialogbench/agent"
)

// Step scripts the outcome of one turn for a [ScriptedInvoker].
type Step struct {
	// Output is the agent response text.
	Output string
	// Delta is merged into the session context after the turn.
	Delta map[string]any
	// Err is returned instead of a response. When FailTimes is also set,
	// only the first FailTimes attempts fail and later attempts succeed.
	Err error
	// FailTimes bounds how many attempts return Err. Zero with a non-nil
	// Err means every attempt fails.
	FailTimes int
	// Delay simulates agent latency before the outcome is produced.
	Delay time.Duration
}

// ScriptedInvoker plays back scripted outcomes per session and turn. Turns
// without a script echo their input. It tracks call counts and the peak
// number of concurrent invocations, which concurrency tests assert on.
type ScriptedInvoker struct {
	// Script maps a session ID to its per-turn steps.
	Script map[string][]Step

	mu          sync.Mutex
	attempts    map[string]int
	requests    []agent.Request
	calls       int
	inFlight    int
	maxInFlight int
}

var _ agent.Invoker = (*ScriptedInvoker)(nil)

// NewScriptedInvoker returns an invoker with an empty script; every turn
// echoes its input until scripts are added.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{Script: make(map[string][]Step)}
}

// Invoke implements [agent.Invoker].
func (s *ScriptedInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Response, error) {
	s.mu.Lock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	key := fmt.Sprintf("%s/%d", req.SessionID, req.Turn)
	s.attempts[key]++
	attempt := s.attempts[key]
	s.requests = append(s.requests, req)
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	steps := s.Script[req.SessionID]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	var step Step
	scripted := req.Turn >= 0 && req.Turn < len(steps)
	if scripted {
		step = steps[req.Turn]
	}

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !scripted {
		return &agent.Response{Output: req.Input}, nil
	}
	if step.Err != nil && (step.FailTimes == 0 || attempt <= step.FailTimes) {
		return nil, step.Err
	}
	return &agent.Response{Output: step.Output, ContextDelta: step.Delta}, nil
}

// Calls returns the total number of invocations across all sessions.
func (s *ScriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Attempts returns how many times the given session turn was invoked.
func (s *ScriptedInvoker) Attempts(sessionID string, turn int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[fmt.Sprintf("%s/%d", sessionID, turn)]
}

// Requests returns every request received, in arrival order.
func (s *ScriptedInvoker) Requests() []agent.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Request(nil), s.requests...)
}

// MaxInFlight returns the peak number of concurrent invocations observed.
func (s *ScriptedInvoker) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}
