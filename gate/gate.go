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

// Package gate renders quality verdicts over aggregated evaluation results.
//
// [Evaluate] is a pure function: the same metrics, config, and baseline
// always produce an identical [Verdict]. Each threshold check is reported
// individually with its measured value so callers can see which check
// failed, never only the overall boolean. Regression detection against a
// baseline is reported alongside the verdict, not merged into it: a run can
// pass its gate and still be flagged as a regression.
package gate

import (
	"fmt"
	"time"

	"github.com/dialogbench/dialogbench/evaluation"
)

// Check names rendered in a [Verdict].
const (
	CheckSuccessRate   = "success_rate"
	CheckAverageScore  = "average_score"
	CheckExecutionTime = "execution_time"
	CheckFailedTurns   = "failed_turns"
)

// Config holds the gate thresholds.
type Config struct {
	// MinSuccessRate is the minimum fraction of passed turns, in [0, 1].
	MinSuccessRate float64 `json:"min_success_rate" yaml:"min_success_rate"`

	// MinAverageScore is the minimum per-metric average for every required
	// metric without an explicit threshold, in [0, 1].
	MinAverageScore float64 `json:"min_average_score" yaml:"min_average_score"`

	// MetricThresholds overrides MinAverageScore per metric.
	MetricThresholds map[evaluation.MetricType]float64 `json:"metric_thresholds,omitempty" yaml:"metric_thresholds,omitempty"`

	// MaxExecutionTime bounds the whole run. Zero disables the check.
	MaxExecutionTime time.Duration `json:"max_execution_time" yaml:"max_execution_time"`

	// MaxFailedTurns bounds the number of turns that did not pass.
	MaxFailedTurns int `json:"max_failed_turns" yaml:"max_failed_turns"`

	// RequiredMetrics are the metrics the average-score checks cover. A
	// required metric missing from the run fails its check.
	RequiredMetrics []evaluation.MetricType `json:"required_metrics" yaml:"required_metrics"`

	// RegressionTolerance is how far a metric may drop below the baseline
	// before the run is flagged. Zero flags any drop.
	RegressionTolerance float64 `json:"regression_tolerance" yaml:"regression_tolerance"`
}

// Default returns the stock gate configuration.
func Default() Config {
	return Config{
		MinSuccessRate:   0.8,
		MinAverageScore:  0.7,
		MaxExecutionTime: 5 * time.Minute,
		MaxFailedTurns:   5,
		RequiredMetrics:  evaluation.DefaultMetrics(),
	}
}

// Validate reports the first problem with the config, if any.
func (c Config) Validate() error {
	if c.MinSuccessRate < 0 || c.MinSuccessRate > 1 {
		return fmt.Errorf("gate: min success rate must be in [0, 1], got %v", c.MinSuccessRate)
	}
	if c.MinAverageScore < 0 || c.MinAverageScore > 1 {
		return fmt.Errorf("gate: min average score must be in [0, 1], got %v", c.MinAverageScore)
	}
	for metric, threshold := range c.MetricThresholds {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("gate: threshold for %q must be in [0, 1], got %v", metric, threshold)
		}
	}
	if c.MaxExecutionTime < 0 {
		return fmt.Errorf("gate: max execution time must not be negative, got %v", c.MaxExecutionTime)
	}
	if c.MaxFailedTurns < 0 {
		return fmt.Errorf("gate: max failed turns must not be negative, got %d", c.MaxFailedTurns)
	}
	if c.RegressionTolerance < 0 {
		return fmt.Errorf("gate: regression tolerance must not be negative, got %v", c.RegressionTolerance)
	}
	for _, metric := range c.RequiredMetrics {
		if metric == "" {
			return fmt.Errorf("gate: required metric name must not be empty")
		}
	}
	return nil
}

// threshold returns the average-score threshold for a metric.
func (c Config) threshold(metric evaluation.MetricType) float64 {
	if t, ok := c.MetricThresholds[metric]; ok {
		return t
	}
	return c.MinAverageScore
}

// Metrics is the aggregated input the gate evaluates. The runner produces
// it from an evaluation run; stored records reproduce it for re-evaluation.
type Metrics struct {
	TotalSessions int                               `json:"total_sessions"`
	TotalTurns    int                               `json:"total_turns"`
	PassedTurns   int                               `json:"passed_turns"`
	FailedTurns   int                               `json:"failed_turns"`
	SuccessRate   float64                           `json:"success_rate"`
	AverageScores map[evaluation.MetricType]float64 `json:"average_scores"`
	ExecutionTime time.Duration                     `json:"execution_time"`
}

// OverallScore returns the single run-wide score reports and CI outputs
// publish: the "overall" aggregate when the evaluators reported one,
// otherwise the mean of the measured per-metric averages.
func (m Metrics) OverallScore() float64 {
	if overall, ok := m.AverageScores[evaluation.MetricOverall]; ok {
		return overall
	}
	if len(m.AverageScores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.AverageScores {
		sum += v
	}
	return sum / float64(len(m.AverageScores))
}

// Check is one threshold comparison with its measured value.
type Check struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Detail    string  `json:"detail,omitempty"`
}

// Baseline is a prior run's aggregate used for regression detection.
type Baseline struct {
	RecordedAt    time.Time                         `json:"recorded_at"`
	SuccessRate   float64                           `json:"success_rate"`
	AverageScores map[evaluation.MetricType]float64 `json:"average_scores"`
	ExecutionTime time.Duration                     `json:"execution_time"`
}

// Regression describes one metric that dropped below the baseline.
type Regression struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

// Verdict is the gate outcome. It carries no timestamps: evaluating the
// same inputs twice yields identical verdicts.
type Verdict struct {
	Passed             bool         `json:"passed"`
	Checks             []Check      `json:"checks"`
	RegressionDetected bool         `json:"regression_detected"`
	Regressions        []Regression `json:"regressions,omitempty"`
}

// FailedChecks returns the checks that did not pass.
func (v *Verdict) FailedChecks() []Check {
	var failed []Check
	for _, check := range v.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

// Evaluate runs every configured check against the metrics and, when a
// baseline is present, flags regressions. The verdict passes iff every
// check passes; regressions never affect the pass flag.
func Evaluate(m Metrics, cfg Config, baseline *Baseline) *Verdict {
	verdict := &Verdict{Passed: true}

	add := func(check Check) {
		verdict.Checks = append(verdict.Checks, check)
		if !check.Passed {
			verdict.Passed = false
		}
	}

	add(Check{
		Name:      CheckSuccessRate,
		Passed:    m.SuccessRate >= cfg.MinSuccessRate,
		Value:     m.SuccessRate,
		Threshold: cfg.MinSuccessRate,
		Detail:    fmt.Sprintf("%d of %d turns passed", m.PassedTurns, m.TotalTurns),
	})

	for _, metric := range cfg.RequiredMetrics {
		threshold := cfg.threshold(metric)
		value, measured := m.AverageScores[metric]
		check := Check{
			Name:      CheckAverageScore + ":" + string(metric),
			Passed:    measured && value >= threshold,
			Value:     value,
			Threshold: threshold,
		}
		if !measured {
			check.Detail = "metric not measured"
		}
		add(check)
	}

	if cfg.MaxExecutionTime > 0 {
		add(Check{
			Name:      CheckExecutionTime,
			Passed:    m.ExecutionTime <= cfg.MaxExecutionTime,
			Value:     m.ExecutionTime.Seconds(),
			Threshold: cfg.MaxExecutionTime.Seconds(),
			Detail:    fmt.Sprintf("run took %s", m.ExecutionTime.Round(time.Millisecond)),
		})
	}

	add(Check{
		Name:      CheckFailedTurns,
		Passed:    m.FailedTurns <= cfg.MaxFailedTurns,
		Value:     float64(m.FailedTurns),
		Threshold: float64(cfg.MaxFailedTurns),
	})

	if baseline != nil {
		verdict.Regressions = findRegressions(m, cfg, baseline)
		verdict.RegressionDetected = len(verdict.Regressions) > 0
	}

	return verdict
}

// findRegressions compares the run against the baseline: success rate
// first, then every required metric present in the baseline. A drop
// strictly greater than the tolerance flags a regression.
func findRegressions(m Metrics, cfg Config, baseline *Baseline) []Regression {
	var regressions []Regression

	if drop := baseline.SuccessRate - m.SuccessRate; drop > cfg.RegressionTolerance {
		regressions = append(regressions, Regression{
			Metric:   CheckSuccessRate,
			Baseline: baseline.SuccessRate,
			Current:  m.SuccessRate,
			Delta:    drop,
		})
	}

	for _, metric := range cfg.RequiredMetrics {
		base, ok := baseline.AverageScores[metric]
		if !ok {
			continue
		}
		current := m.AverageScores[metric]
		if drop := base - current; drop > cfg.RegressionTolerance {
			regressions = append(regressions, Regression{
				Metric:   string(metric),
				Baseline: base,
				Current:  current,
				Delta:    drop,
			})
		}
	}

	return regressions
}

// MergeBaselines averages a run history into one smoothed baseline, so a
// single unusually good run does not flag every successor as a regression.
// The per-metric denominators count only the baselines measuring that
// metric. RecordedAt is the newest of the inputs. An empty history returns
// nil.
func MergeBaselines(history []Baseline) *Baseline {
	if len(history) == 0 {
		return nil
	}

	merged := &Baseline{AverageScores: make(map[evaluation.MetricType]float64)}
	counts := make(map[evaluation.MetricType]int)
	var execution time.Duration

	for _, b := range history {
		merged.SuccessRate += b.SuccessRate
		execution += b.ExecutionTime
		if b.RecordedAt.After(merged.RecordedAt) {
			merged.RecordedAt = b.RecordedAt
		}
		for metric, value := range b.AverageScores {
			merged.AverageScores[metric] += value
			counts[metric]++
		}
	}

	n := float64(len(history))
	merged.SuccessRate /= n
	merged.ExecutionTime = time.Duration(float64(execution) / n)
	for metric := range merged.AverageScores {
		merged.AverageScores[metric] /= float64(counts[metric])
	}
	return merged
}
