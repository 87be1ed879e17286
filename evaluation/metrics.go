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

// MetricType identifies a specific evaluation metric.
type MetricType string

const (
	// MetricHelpfulness measures how much of the expected content the
	// response covers. Score: 0.0 - 1.0 (higher is better).
	MetricHelpfulness MetricType = "helpfulness"

	// MetricFaithfulness measures how much of the response is grounded in
	// the expected content. Score: 0.0 - 1.0 (higher is better).
	MetricFaithfulness MetricType = "faithfulness"

	// MetricInstructionFollowing combines coverage and grounding into a
	// single balance score. Score: 0.0 - 1.0 (higher is better).
	MetricInstructionFollowing MetricType = "instruction_following"

	// MetricResponseMatch compares the agent response against the expected
	// response using unigram recall. Score: 0.0 - 1.0 (higher is better).
	// Uses algorithmic comparison, no model required.
	MetricResponseMatch MetricType = "response_match"

	// MetricOverall is the mean across the other reported metrics. Derived
	// by the Adapter when required and not supplied by the evaluator.
	MetricOverall MetricType = "overall"
)

// DefaultMetrics returns the metric set required by default: the three
// quality dimensions the quality gate tracks out of the box.
func DefaultMetrics() []MetricType {
	return []MetricType{
		MetricHelpfulness,
		MetricFaithfulness,
		MetricInstructionFollowing,
	}
}

// String returns the string representation of the metric type.
func (m MetricType) String() string {
	return string(m)
}
