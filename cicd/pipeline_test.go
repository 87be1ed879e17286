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

package cicd_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dialogbench/dialogbench/cicd"
	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/hook"
	"github.com/dialogbench/dialogbench/runner"
	"github.com/dialogbench/dialogbench/storage"
)

// evalResult builds an aggregate where every default metric averages to
// score and passed of total turns passed.
func evalResult(runID string, passed, total int, score float64) *runner.EvaluationResult {
	averages := make(map[evaluation.MetricType]float64)
	for _, m := range evaluation.DefaultMetrics() {
		averages[m] = score
	}
	return &runner.EvaluationResult{
		RunID:         runID,
		StartedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:      2 * time.Second,
		TotalSessions: 1,
		TotalTurns:    total,
		PassedTurns:   passed,
		FailedTurns:   total - passed,
		SuccessRate:   float64(passed) / float64(total),
		AverageScores: averages,
	}
}

// lenientGate accepts everything so only regression status varies.
func lenientGate() gate.Config {
	cfg := gate.Default()
	cfg.MinSuccessRate = 0
	cfg.MinAverageScore = 0
	cfg.MaxFailedTurns = 100
	return cfg
}

func TestRunStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		gate     gate.Config
		history  []*runner.EvaluationResult
		result   *runner.EvaluationResult
		want     cicd.Status
		wantExit int
	}{
		{
			name:     "gate passes without history",
			gate:     lenientGate(),
			result:   evalResult("run-1", 9, 10, 0.9),
			want:     cicd.StatusPassed,
			wantExit: 0,
		},
		{
			name:     "gate fails",
			gate:     gate.Default(),
			result:   evalResult("run-1", 5, 10, 0.5),
			want:     cicd.StatusFailed,
			wantExit: 1,
		},
		{
			name:     "gate passes but regresses",
			gate:     lenientGate(),
			history:  []*runner.EvaluationResult{evalResult("run-0", 10, 10, 0.95)},
			result:   evalResult("run-1", 9, 10, 0.85),
			want:     cicd.StatusWarning,
			wantExit: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := storage.NewMemoryStorage()
			for _, h := range tt.history {
				verdict := gate.Evaluate(h.GateMetrics(), tt.gate, nil)
				if err := store.SaveRun(t.Context(), storage.NewRunRecord(h, verdict, "passed")); err != nil {
					t.Fatalf("seed history: %v", err)
				}
			}

			pipeline, err := cicd.New(cicd.Config{Gate: tt.gate}, store, nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			got, err := pipeline.Run(t.Context(), tt.result)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
			if got.Status.ExitCode() != tt.wantExit {
				t.Errorf("exit code = %d, want %d", got.Status.ExitCode(), tt.wantExit)
			}

			// The gated run must itself be persisted as future history.
			stored, err := store.GetRun(t.Context(), tt.result.RunID)
			if err != nil {
				t.Fatalf("gated run not persisted: %v", err)
			}
			if stored.Status != string(tt.want) {
				t.Errorf("persisted status = %q, want %q", stored.Status, tt.want)
			}
		})
	}
}

func TestRunDispatchesIntegrationHooks(t *testing.T) {
	t.Parallel()

	hooks := hook.NewRegistry()
	calls := 0
	err := hooks.Register(hook.Hook{
		Name: "integration-check",
		Type: hook.TypeIntegrationTest,
		Func: func(ctx context.Context, hctx *hook.Context) (*hook.Result, error) {
			calls++
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pipeline, err := cicd.New(cicd.Config{Gate: lenientGate()}, storage.NewMemoryStorage(), hooks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pipeline.Run(t.Context(), evalResult("run-1", 1, 1, 1)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("integration hook ran %d times, want 1", calls)
	}

	skipping, err := cicd.New(cicd.Config{Gate: lenientGate(), SkipIntegrationHooks: true},
		storage.NewMemoryStorage(), hooks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := skipping.Run(t.Context(), evalResult("run-2", 1, 1, 1)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("integration hook ran despite SkipIntegrationHooks, calls = %d", calls)
	}
}

func TestRunWritesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pipeline, err := cicd.New(cicd.Config{Gate: lenientGate(), OutputDir: dir}, storage.NewMemoryStorage(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := pipeline.Run(t.Context(), evalResult("run-1", 1, 1, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.ReportPath == "" {
		t.Fatal("no report path returned")
	}
	if _, err := os.Stat(got.ReportPath); err != nil {
		t.Errorf("report file missing: %v", err)
	}
}

func TestGitHubOutputs(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "github_output")
	t.Setenv("GITHUB_OUTPUT", outputFile)

	pipeline, err := cicd.New(cicd.Config{Gate: lenientGate(), Platform: cicd.PlatformGitHub},
		storage.NewMemoryStorage(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pipeline.Run(t.Context(), evalResult("run-1", 9, 10, 0.9)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("GITHUB_OUTPUT not written: %v", err)
	}
	text := string(data)
	// evalResult reports no "overall" aggregate, so the published score
	// must fall back to the mean of the measured metrics.
	for _, want := range []string{
		"evaluation_passed=true",
		"success_rate=0.9000",
		"overall_score=0.9000",
		"failed_turns=1",
		"regression_detected=false",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("GITHUB_OUTPUT missing %q:\n%s", want, text)
		}
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := cicd.New(cicd.Config{Gate: lenientGate()}, nil, nil); err == nil {
		t.Error("New accepted a nil store")
	}

	bad := lenientGate()
	bad.MinSuccessRate = 2
	if _, err := cicd.New(cicd.Config{Gate: bad}, storage.NewMemoryStorage(), nil); err == nil {
		t.Error("New accepted an invalid gate config")
	}

	if _, err := cicd.New(cicd.Config{Gate: lenientGate(), Platform: "circleci"},
		storage.NewMemoryStorage(), nil); err == nil {
		t.Error("New accepted an unknown platform")
	}
}
