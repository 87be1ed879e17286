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

package testutil

import (
	"context"
	"sync"

	"github.com/dialogbench/dialogbench/evaluation"
)

// ScriptedEvaluator returns fixed results, an error, or a panic on every
// call. The zero value scores all default metrics at 1.0 passed.
type ScriptedEvaluator struct {
	// Results are returned verbatim when set.
	Results evaluation.Results
	// Err fails every evaluation when set.
	Err error
	// PanicMsg panics every evaluation when set.
	PanicMsg string

	mu    sync.Mutex
	calls int
}

var _ evaluation.Evaluator = (*ScriptedEvaluator)(nil)

// Evaluate implements [evaluation.Evaluator].
func (e *ScriptedEvaluator) Evaluate(ctx context.Context, params evaluation.Params) (evaluation.Results, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.PanicMsg != "" {
		panic(e.PanicMsg)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Results != nil {
		return e.Results.Clone(), nil
	}
	results := make(evaluation.Results)
	for _, metric := range evaluation.DefaultMetrics() {
		results[metric] = evaluation.Score{Value: 1, Passed: true}
	}
	return results, nil
}

// Kind implements [evaluation.Evaluator].
func (e *ScriptedEvaluator) Kind() string { return "scripted" }

// Calls returns how many times Evaluate ran.
func (e *ScriptedEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Adapter wraps the evaluator in an [evaluation.Adapter] over the default
// metrics, failing the test on construction errors.
func Adapter(t testingT, e evaluation.Evaluator) *evaluation.Adapter {
	t.Helper()
	adapter, err := evaluation.NewAdapter(e, nil)
	if err != nil {
		t.Fatalf("NewAdapter() failed: %v", err)
	}
	return adapter
}

// testingT is the subset of *testing.T the helpers need.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
