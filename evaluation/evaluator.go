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

package evaluation

import "context"

// Score is one metric's result for one turn.
type Score struct {
	Value  float64 `json:"value"`
	Passed bool    `json:"passed"`
}

// Results maps metric names to their scores for one turn.
type Results map[MetricType]Score

// Clone returns a copy of the results.
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Params carries the inputs of one turn evaluation.
type Params struct {
	// Input is the text sent to the agent.
	Input string

	// Response is the agent's reply.
	Response string

	// Expected is the reference response (optional for some evaluators).
	Expected string

	// Metadata carries turn-level annotations from the dataset.
	Metadata map[string]any
}

// Evaluator defines the core scoring interface. All evaluators must
// implement this interface.
type Evaluator interface {
	// Evaluate scores one turn. Returned scores outside [0, 1] are clamped
	// by the Adapter.
	Evaluate(ctx context.Context, params Params) (Results, error)

	// Kind returns the registry kind this evaluator was created as.
	Kind() string
}

// Factory creates evaluators of a specific kind.
type Factory func(config Config) (Evaluator, error)

// Config provides configuration for evaluator creation.
type Config struct {
	// Metrics the evaluator should report. Empty means DefaultMetrics.
	Metrics []MetricType

	// Options carries kind-specific settings, typically decoded from the
	// dataset or a config file.
	Options map[string]any
}
