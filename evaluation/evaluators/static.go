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

package evaluators

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dialogbench/dialogbench/evaluation"
)

// staticOptions holds the decoded Options map for the static evaluator.
type staticOptions struct {
	// Scores maps metric names to the fixed value to report. Metrics not
	// listed default to 1.0.
	Scores map[string]float64 `mapstructure:"scores"`
	// PassThreshold is the minimum score for a metric to count as passed.
	PassThreshold float64 `mapstructure:"pass_threshold"`
}

// StaticEvaluator reports a fixed score per metric regardless of the turn
// content. It exists for wiring checks and local pipeline dry runs where
// real scoring would only add noise.
type StaticEvaluator struct {
	scores        map[evaluation.MetricType]float64
	passThreshold float64
}

var _ evaluation.Evaluator = (*StaticEvaluator)(nil)

// NewStaticEvaluator builds a StaticEvaluator from the registry config.
func NewStaticEvaluator(cfg evaluation.Config) (evaluation.Evaluator, error) {
	opts := staticOptions{PassThreshold: defaultPassThreshold}
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("evaluation: invalid static options: %w", err)
		}
	}
	if opts.PassThreshold < 0 || opts.PassThreshold > 1 {
		return nil, fmt.Errorf("evaluation: pass_threshold must be in [0, 1], got %v", opts.PassThreshold)
	}

	scores := make(map[evaluation.MetricType]float64, len(opts.Scores))
	for name, value := range opts.Scores {
		if value < 0 || value > 1 {
			return nil, fmt.Errorf("evaluation: static score for %q must be in [0, 1], got %v", name, value)
		}
		scores[evaluation.MetricType(name)] = value
	}
	return &StaticEvaluator{scores: scores, passThreshold: opts.PassThreshold}, nil
}

// Kind implements [evaluation.Evaluator].
func (e *StaticEvaluator) Kind() string { return KindStatic }

// Evaluate implements [evaluation.Evaluator].
func (e *StaticEvaluator) Evaluate(ctx context.Context, params evaluation.Params) (evaluation.Results, error) {
	results := make(evaluation.Results, len(evaluation.DefaultMetrics()))
	for _, metric := range evaluation.DefaultMetrics() {
		results[metric] = e.score(metric)
	}
	for metric := range e.scores {
		results[metric] = e.score(metric)
	}
	return results, nil
}

func (e *StaticEvaluator) score(metric evaluation.MetricType) evaluation.Score {
	value, ok := e.scores[metric]
	if !ok {
		value = 1.0
	}
	return evaluation.Score{Value: value, Passed: value >= e.passThreshold}
}
