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

// Package evaluation defines the metric scoring contract for turn evaluation.
//
// Evaluators are pluggable scoring functions that map one turn (input, agent
// response, optional expected response) to per-metric scores in [0, 1] with a
// pass/fail flag each. Concrete evaluators are selected by configuration
// through a registry of named factories, never by runtime type inspection.
//
// # Core Concepts
//
// Evaluator: interface implemented by scoring plugins
//
// Registry: named evaluator factories, selected by kind string
//
// Adapter: normalizes any evaluator into a uniform outcome — missing
// required metrics become score 0 / failed, scores are clamped to [0, 1],
// and an evaluator error or panic is caught and zeroes the turn instead of
// propagating
//
// # Built-in Metrics
//
// The built-in metric names mirror the quality dimensions tracked by the
// quality gate:
//   - helpfulness: how much of the expected content the response covers
//   - faithfulness: how much of the response is grounded in expected content
//   - instruction_following: combined precision/recall of the response
//   - response_match: unigram recall against the expected response
//   - overall: mean across the other reported metrics
//
// # Example Usage
//
//	ev, err := evaluation.New("lexical", evaluation.Config{
//	    Metrics: evaluation.DefaultMetrics(),
//	})
//	if err != nil {
//	    return err
//	}
//	adapter, err := evaluation.NewAdapter(ev, evaluation.DefaultMetrics())
//	if err != nil {
//	    return err
//	}
//	outcome := adapter.Score(ctx, evaluation.Params{
//	    Input:    "What is the capital of France?",
//	    Response: "The capital of France is Paris.",
//	    Expected: "Paris is the capital of France.",
//	})
package evaluation
