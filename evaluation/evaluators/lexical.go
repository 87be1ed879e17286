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

// Package evaluators provides the built-in evaluator implementations and
// registers them with the evaluation registry.
package evaluators

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"

	"github.com/dialogbench/dialogbench/evaluation"
)

// lexicalOptions holds the decoded Options map for the lexical evaluator.
type lexicalOptions struct {
	// PassThreshold is the minimum score for a metric to count as passed.
	PassThreshold float64 `mapstructure:"pass_threshold"`
}

// LexicalEvaluator scores responses by token overlap with the expected
// response. It needs no model access, which makes it suitable for fast
// smoke runs and CI pipelines.
//
// Metric mapping:
//   - helpfulness and response_match: recall of expected tokens
//   - faithfulness: precision of response tokens
//   - instruction_following: F1 of precision and recall
type LexicalEvaluator struct {
	passThreshold float64
}

var _ evaluation.Evaluator = (*LexicalEvaluator)(nil)

// NewLexicalEvaluator builds a LexicalEvaluator from the registry config.
func NewLexicalEvaluator(cfg evaluation.Config) (evaluation.Evaluator, error) {
	opts := lexicalOptions{PassThreshold: defaultPassThreshold}
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("evaluation: invalid lexical options: %w", err)
		}
	}
	if opts.PassThreshold < 0 || opts.PassThreshold > 1 {
		return nil, fmt.Errorf("evaluation: pass_threshold must be in [0, 1], got %v", opts.PassThreshold)
	}
	return &LexicalEvaluator{passThreshold: opts.PassThreshold}, nil
}

// Kind implements [evaluation.Evaluator].
func (e *LexicalEvaluator) Kind() string { return KindLexical }

// Evaluate implements [evaluation.Evaluator]. It fails when no expected
// response is available, since overlap against nothing is meaningless.
func (e *LexicalEvaluator) Evaluate(ctx context.Context, params evaluation.Params) (evaluation.Results, error) {
	expected := tokenize(params.Expected)
	if len(expected) == 0 {
		return nil, fmt.Errorf("evaluation: lexical evaluator requires a non-empty expected response")
	}
	response := tokenize(params.Response)

	precision, recall := overlap(response, expected)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return evaluation.Results{
		evaluation.MetricHelpfulness:          e.score(recall),
		evaluation.MetricFaithfulness:         e.score(precision),
		evaluation.MetricInstructionFollowing: e.score(f1),
		evaluation.MetricResponseMatch:        e.score(recall),
	}, nil
}

func (e *LexicalEvaluator) score(value float64) evaluation.Score {
	return evaluation.Score{Value: value, Passed: value >= e.passThreshold}
}

// overlap returns the precision of response tokens against expected tokens
// and the recall of expected tokens in the response. Duplicate tokens count
// once.
func overlap(response, expected []string) (precision, recall float64) {
	responseSet := toSet(response)
	expectedSet := toSet(expected)

	matched := 0
	for token := range expectedSet {
		if responseSet[token] {
			matched++
		}
	}

	if len(responseSet) > 0 {
		precision = float64(matched) / float64(len(responseSet))
	}
	recall = float64(matched) / float64(len(expectedSet))
	return precision, recall
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}

// tokenize lowercases the text and splits it on every non-alphanumeric rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
