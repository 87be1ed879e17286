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

package evaluators_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/evaluation/evaluators"
)

func TestStaticEvaluate(t *testing.T) {
	evaluator, err := evaluators.NewStaticEvaluator(evaluation.Config{
		Options: map[string]any{
			"scores": map[string]any{
				"helpfulness": 0.25,
				"tone":        0.75,
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStaticEvaluator() failed: %v", err)
	}

	got, err := evaluator.Evaluate(t.Context(), evaluation.Params{Input: "hi", Response: "hello"})
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	want := evaluation.Results{
		evaluation.MetricHelpfulness:          {Value: 0.25, Passed: false},
		evaluation.MetricFaithfulness:         {Value: 1, Passed: true},
		evaluation.MetricInstructionFollowing: {Value: 1, Passed: true},
		evaluation.MetricType("tone"):         {Value: 0.75, Passed: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewStaticEvaluatorValidation(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{name: "score above one", options: map[string]any{"scores": map[string]any{"helpfulness": 1.2}}},
		{name: "score below zero", options: map[string]any{"scores": map[string]any{"helpfulness": -0.4}}},
		{name: "threshold out of range", options: map[string]any{"pass_threshold": 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evaluators.NewStaticEvaluator(evaluation.Config{Options: tt.options}); err == nil {
				t.Errorf("NewStaticEvaluator(%v) should have failed", tt.options)
			}
		})
	}
}

func TestRegisterDefaults(t *testing.T) {
	if err := evaluators.RegisterDefaults(); err != nil {
		t.Fatalf("RegisterDefaults() failed: %v", err)
	}
	for _, kind := range []string{evaluators.KindLexical, evaluators.KindStatic} {
		if !evaluation.DefaultRegistry.IsRegistered(kind) {
			t.Errorf("IsRegistered(%q) = false, want true", kind)
		}
	}
	if err := evaluators.RegisterDefaults(); err == nil {
		t.Errorf("RegisterDefaults() twice should have failed")
	}
}
