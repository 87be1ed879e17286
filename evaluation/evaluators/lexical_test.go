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

func TestLexicalEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		params  evaluation.Params
		want    evaluation.Results
		wantErr bool
	}{
		{
			name: "exact match scores one everywhere",
			params: evaluation.Params{
				Response: "the quick brown fox",
				Expected: "the quick brown fox",
			},
			want: evaluation.Results{
				evaluation.MetricHelpfulness:          {Value: 1, Passed: true},
				evaluation.MetricFaithfulness:         {Value: 1, Passed: true},
				evaluation.MetricInstructionFollowing: {Value: 1, Passed: true},
				evaluation.MetricResponseMatch:        {Value: 1, Passed: true},
			},
		},
		{
			name: "case and punctuation are ignored",
			params: evaluation.Params{
				Response: "Hello, World!",
				Expected: "hello world",
			},
			want: evaluation.Results{
				evaluation.MetricHelpfulness:          {Value: 1, Passed: true},
				evaluation.MetricFaithfulness:         {Value: 1, Passed: true},
				evaluation.MetricInstructionFollowing: {Value: 1, Passed: true},
				evaluation.MetricResponseMatch:        {Value: 1, Passed: true},
			},
		},
		{
			name: "partial overlap",
			params: evaluation.Params{
				Response: "alpha beta gamma delta",
				Expected: "alpha beta echo foxtrot",
			},
			want: evaluation.Results{
				evaluation.MetricHelpfulness:          {Value: 0.5, Passed: false},
				evaluation.MetricFaithfulness:         {Value: 0.5, Passed: false},
				evaluation.MetricInstructionFollowing: {Value: 0.5, Passed: false},
				evaluation.MetricResponseMatch:        {Value: 0.5, Passed: false},
			},
		},
		{
			name: "empty response scores zero",
			params: evaluation.Params{
				Response: "",
				Expected: "anything at all",
			},
			want: evaluation.Results{
				evaluation.MetricHelpfulness:          {Value: 0, Passed: false},
				evaluation.MetricFaithfulness:         {Value: 0, Passed: false},
				evaluation.MetricInstructionFollowing: {Value: 0, Passed: false},
				evaluation.MetricResponseMatch:        {Value: 0, Passed: false},
			},
		},
		{
			name:    "lowered threshold flips passed",
			options: map[string]any{"pass_threshold": 0.5},
			params: evaluation.Params{
				Response: "alpha beta gamma delta",
				Expected: "alpha beta echo foxtrot",
			},
			want: evaluation.Results{
				evaluation.MetricHelpfulness:          {Value: 0.5, Passed: true},
				evaluation.MetricFaithfulness:         {Value: 0.5, Passed: true},
				evaluation.MetricInstructionFollowing: {Value: 0.5, Passed: true},
				evaluation.MetricResponseMatch:        {Value: 0.5, Passed: true},
			},
		},
		{
			name: "empty expected is rejected",
			params: evaluation.Params{
				Response: "something",
				Expected: "  ... ",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := evaluators.NewLexicalEvaluator(evaluation.Config{Options: tt.options})
			if err != nil {
				t.Fatalf("NewLexicalEvaluator() failed: %v", err)
			}

			got, err := evaluator.Evaluate(t.Context(), tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %t", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewLexicalEvaluatorValidation(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{name: "threshold above one", options: map[string]any{"pass_threshold": 1.5}},
		{name: "threshold below zero", options: map[string]any{"pass_threshold": -0.1}},
		{name: "threshold wrong type", options: map[string]any{"pass_threshold": "high"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evaluators.NewLexicalEvaluator(evaluation.Config{Options: tt.options}); err == nil {
				t.Errorf("NewLexicalEvaluator(%v) should have failed", tt.options)
			}
		})
	}
}
