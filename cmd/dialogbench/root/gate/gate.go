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

// Package gate implements `dialogbench gate`: re-evaluating a stored run
// against new thresholds without re-running any session.
package gate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialogbench/dialogbench/cmd/dialogbench/root"
	"github.com/dialogbench/dialogbench/evaluation"
	qualitygate "github.com/dialogbench/dialogbench/gate"
)

type gateFlags struct {
	runID           string
	storageKind     string
	storagePath     string
	minSuccessRate  float64
	minAverageScore float64
	maxFailedTurns  int
	requiredMetrics []string
}

var flags gateFlags

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Re-evaluate a stored run against different quality thresholds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return flags.gate(cmd.Context())
	},
}

func init() {
	root.Cmd.AddCommand(gateCmd)

	gateCmd.Flags().StringVar(&flags.runID, "run", "", "Run ID to re-evaluate")
	gateCmd.Flags().StringVar(&flags.storageKind, "storage", "file", "Run history backend: memory, file, or sqlite")
	gateCmd.Flags().StringVar(&flags.storagePath, "storage-path", "", "Path for the file or sqlite backend")
	gateCmd.Flags().Float64Var(&flags.minSuccessRate, "min-success-rate", 0.8, "Minimum turn success rate")
	gateCmd.Flags().Float64Var(&flags.minAverageScore, "min-average-score", 0.7, "Minimum average score per required metric")
	gateCmd.Flags().IntVar(&flags.maxFailedTurns, "max-failed-turns", 5, "Maximum failed turns")
	gateCmd.Flags().StringSliceVar(&flags.requiredMetrics, "required-metrics", nil, "Metrics the gate checks (default: the built-in quality metrics)")

	cobra.CheckErr(gateCmd.MarkFlagRequired("run"))
}

func (f *gateFlags) gate(ctx context.Context) error {
	store, err := root.OpenStorage(f.storageKind, f.storagePath)
	if err != nil {
		return err
	}

	record, err := store.GetRun(ctx, f.runID)
	if err != nil {
		return err
	}

	required := evaluation.DefaultMetrics()
	if len(f.requiredMetrics) > 0 {
		required = required[:0]
		for _, m := range f.requiredMetrics {
			required = append(required, evaluation.MetricType(strings.TrimSpace(m)))
		}
	}

	cfg := qualitygate.Config{
		MinSuccessRate:  f.minSuccessRate,
		MinAverageScore: f.minAverageScore,
		MaxFailedTurns:  f.maxFailedTurns,
		RequiredMetrics: required,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	verdict := qualitygate.Evaluate(record.Metrics, cfg, nil)

	fmt.Printf("Run %s (recorded %s):\n\n", record.RunID, record.CreatedAt.Format(time.RFC3339))
	for _, check := range verdict.Checks {
		mark := "PASS"
		if !check.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-40s %.3f (threshold %.3f)\n", mark, check.Name, check.Value, check.Threshold)
	}

	if !verdict.Passed {
		os.Exit(1)
	}
	return nil
}
