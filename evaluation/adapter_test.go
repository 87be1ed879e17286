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

package evaluation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dialogbench/dialogbench/evaluation"
)

type fakeEvaluator struct {
	results evaluation.Results
	err     error
	panics  bool
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, params evaluation.Params) (evaluation.Results, error) {
	if f.panics {
		panic("scoring went sideways")
	}
	return f.results, f.err
}

func (f *fakeEvaluator) Kind() string { return "fake" }

func TestAdapterScore(t *testing.T) {
	required := []evaluation.MetricType{
		evaluation.MetricHelpfulness,
		evaluation.MetricFaithfulness,
	}

	tests := []struct {
		name        string
		evaluator   *fakeEvaluator
		wantResults evaluation.Results
		wantErr     bool
	}{
		{
			name: "complete results pass through",
			evaluator: &fakeEvaluator{results: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 0.9, Passed: true},
				evaluation.MetricFaithfulness: {Value: 0.8, Passed: true},
			}},
			wantResults: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 0.9, Passed: true},
				evaluation.MetricFaithfulness: {Value: 0.8, Passed: true},
			},
		},
		{
			name: "missing metric normalized to zero failed",
			evaluator: &fakeEvaluator{results: evaluation.Results{
				evaluation.MetricHelpfulness: {Value: 1.0, Passed: true},
			}},
			wantResults: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 1.0, Passed: true},
				evaluation.MetricFaithfulness: {Value: 0, Passed: false},
			},
		},
		{
			name: "scores clamped to unit interval",
			evaluator: &fakeEvaluator{results: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 1.7, Passed: true},
				evaluation.MetricFaithfulness: {Value: -0.2, Passed: false},
			}},
			wantResults: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 1.0, Passed: true},
				evaluation.MetricFaithfulness: {Value: 0, Passed: false},
			},
		},
		{
			name:      "evaluator error zeroes all metrics",
			evaluator: &fakeEvaluator{err: fmt.Errorf("model unavailable")},
			wantResults: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 0, Passed: false},
				evaluation.MetricFaithfulness: {Value: 0, Passed: false},
			},
			wantErr: true,
		},
		{
			name:      "evaluator panic is contained",
			evaluator: &fakeEvaluator{panics: true},
			wantResults: evaluation.Results{
				evaluation.MetricHelpfulness:  {Value: 0, Passed: false},
				evaluation.MetricFaithfulness: {Value: 0, Passed: false},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := evaluation.NewAdapter(tt.evaluator, required)
			if err != nil {
				t.Fatalf("NewAdapter() failed: %v", err)
			}

			outcome := adapter.Score(t.Context(), evaluation.Params{Input: "q", Response: "a"})

			if (outcome.Err != nil) != tt.wantErr {
				t.Errorf("outcome.Err = %v, wantErr %t", outcome.Err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.wantResults, outcome.Results); diff != "" {
				t.Errorf("outcome.Results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAdapterDerivesOverall(t *testing.T) {
	required := []evaluation.MetricType{
		evaluation.MetricHelpfulness,
		evaluation.MetricFaithfulness,
		evaluation.MetricOverall,
	}
	adapter, err := evaluation.NewAdapter(&fakeEvaluator{results: evaluation.Results{
		evaluation.MetricHelpfulness:  {Value: 1.0, Passed: true},
		evaluation.MetricFaithfulness: {Value: 0.5, Passed: false},
	}}, required)
	if err != nil {
		t.Fatalf("NewAdapter() failed: %v", err)
	}

	outcome := adapter.Score(t.Context(), evaluation.Params{})

	want := evaluation.Score{Value: 0.75, Passed: false}
	if diff := cmp.Diff(want, outcome.Results[evaluation.MetricOverall]); diff != "" {
		t.Errorf("overall score mismatch (-want +got):\n%s", diff)
	}
}

func TestNewAdapterValidation(t *testing.T) {
	if _, err := evaluation.NewAdapter(nil, nil); err == nil {
		t.Errorf("NewAdapter(nil) should have failed")
	}

	adapter, err := evaluation.NewAdapter(&fakeEvaluator{}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() failed: %v", err)
	}
	if diff := cmp.Diff(evaluation.DefaultMetrics(), adapter.Required()); diff != "" {
		t.Errorf("Required() default mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapterZero(t *testing.T) {
	adapter, err := evaluation.NewAdapter(&fakeEvaluator{}, []evaluation.MetricType{evaluation.MetricHelpfulness})
	if err != nil {
		t.Fatalf("NewAdapter() failed: %v", err)
	}

	want := evaluation.Results{evaluation.MetricHelpfulness: {}}
	if diff := cmp.Diff(want, adapter.Zero()); diff != "" {
		t.Errorf("Zero() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry(t *testing.T) {
	registry := evaluation.NewRegistry()
	factory := func(cfg evaluation.Config) (evaluation.Evaluator, error) {
		return &fakeEvaluator{}, nil
	}

	if err := registry.Register("fake", factory); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := registry.Register("fake", factory); err == nil {
		t.Errorf("Register() duplicate should have failed")
	}
	if !registry.IsRegistered("fake") {
		t.Errorf("IsRegistered(fake) = false, want true")
	}

	if _, err := registry.New("fake", evaluation.Config{}); err != nil {
		t.Errorf("New(fake) failed: %v", err)
	}
	if _, err := registry.New("missing", evaluation.Config{}); err == nil {
		t.Errorf("New(missing) should have failed")
	}

	if diff := cmp.Diff([]string{"fake"}, registry.Kinds()); diff != "" {
		t.Errorf("Kinds() mismatch (-want +got):\n%s", diff)
	}
}
