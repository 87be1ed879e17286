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

import (
	"context"
	"fmt"
)

// Outcome is the normalized result of scoring one turn. Results always
// contains every required metric, so per-metric denominators stay uniform
// across turns when aggregating. Err carries the evaluator failure, if any;
// it never propagates past the adapter.
type Outcome struct {
	Results Results
	Err     error
}

// Adapter normalizes a pluggable evaluator into a uniform outcome:
//
//   - every required metric is present, missing ones as score 0 / failed
//   - scores are clamped to [0, 1]
//   - an evaluator error or panic zeroes all required metrics and is
//     reported in the outcome instead of propagating
//   - the overall metric, when required and not supplied, is derived as the
//     mean of the other reported metrics
type Adapter struct {
	evaluator Evaluator
	required  []MetricType
}

// NewAdapter wraps an evaluator. When required is empty, DefaultMetrics is
// used.
func NewAdapter(evaluator Evaluator, required []MetricType) (*Adapter, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluation: evaluator is required")
	}
	if len(required) == 0 {
		required = DefaultMetrics()
	}
	seen := make(map[MetricType]bool, len(required))
	metrics := make([]MetricType, 0, len(required))
	for _, m := range required {
		if m == "" {
			return nil, fmt.Errorf("evaluation: empty required metric name")
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		metrics = append(metrics, m)
	}
	return &Adapter{evaluator: evaluator, required: metrics}, nil
}

// Required returns the metrics every outcome will contain.
func (a *Adapter) Required() []MetricType {
	out := make([]MetricType, len(a.required))
	copy(out, a.required)
	return out
}

// Zero returns a result set with every required metric at score 0 / failed.
// Turns that never reach evaluation are recorded with this, keeping
// aggregate denominators uniform.
func (a *Adapter) Zero() Results {
	results := make(Results, len(a.required))
	for _, m := range a.required {
		results[m] = Score{}
	}
	return results
}

// Score evaluates one turn and normalizes the result.
func (a *Adapter) Score(ctx context.Context, params Params) (outcome Outcome) {
	defer func() {
		if v := recover(); v != nil {
			outcome = Outcome{
				Results: a.Zero(),
				Err:     fmt.Errorf("evaluation: evaluator %q panicked: %v", a.evaluator.Kind(), v),
			}
		}
	}()

	raw, err := a.evaluator.Evaluate(ctx, params)
	if err != nil {
		return Outcome{
			Results: a.Zero(),
			Err:     fmt.Errorf("evaluation: evaluator %q failed: %w", a.evaluator.Kind(), err),
		}
	}
	return Outcome{Results: a.normalize(raw)}
}

func (a *Adapter) normalize(raw Results) Results {
	results := make(Results, len(a.required))
	for m, s := range raw {
		s.Value = clamp01(s.Value)
		results[m] = s
	}
	for _, m := range a.required {
		if _, ok := results[m]; ok {
			continue
		}
		if m == MetricOverall {
			results[m] = overallOf(results)
			continue
		}
		results[m] = Score{}
	}
	return results
}

// overallOf averages all non-overall scores; it passes only when every one
// of them passed. No scores at all yields 0 / failed.
func overallOf(results Results) Score {
	var sum float64
	count := 0
	passed := true
	for m, s := range results {
		if m == MetricOverall {
			continue
		}
		sum += s.Value
		count++
		passed = passed && s.Passed
	}
	if count == 0 {
		return Score{}
	}
	return Score{Value: sum / float64(count), Passed: passed}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
