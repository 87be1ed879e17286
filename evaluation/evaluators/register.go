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

import "github.com/dialogbench/dialogbench/evaluation"

// Kinds of the built-in evaluators.
const (
	KindLexical = "lexical"
	KindStatic  = "static"
)

// defaultPassThreshold is used when the evaluator options omit one.
const defaultPassThreshold = 0.7

// RegisterDefaults installs the built-in evaluators into the default
// registry. Registering twice returns an error from the registry.
func RegisterDefaults() error {
	if err := evaluation.Register(KindLexical, NewLexicalEvaluator); err != nil {
		return err
	}
	return evaluation.Register(KindStatic, NewStaticEvaluator)
}
