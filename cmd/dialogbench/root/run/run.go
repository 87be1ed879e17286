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

// Package run implements `dialogbench run`.
package run

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dialogbench/dialogbench/agent"
	"github.com/dialogbench/dialogbench/cicd"
	"github.com/dialogbench/dialogbench/cmd/dialogbench/root"
	"github.com/dialogbench/dialogbench/dataset"
	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/evaluation/evaluators"
	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/report"
	"github.com/dialogbench/dialogbench/runner"
	"github.com/dialogbench/dialogbench/storage"
	"github.com/dialogbench/dialogbench/telemetry"
)

type runFlags struct {
	dataFile string
	mode     string

	evaluator       string
	requiredMetrics []string

	maxWorkers             int
	timeout                time.Duration
	turnDelay              time.Duration
	maxConsecutiveFailures int

	minSuccessRate      float64
	minAverageScore     float64
	maxExecutionTime    time.Duration
	maxFailedTurns      int
	regressionTolerance float64
	history             int

	storageKind string
	storagePath string
	outputDir   string
	format      string
	ciPlatform  string

	otel bool
}

var flags runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an evaluation over a dataset of scripted sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return flags.run(cmd.Context())
	},
}

func init() {
	root.Cmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&flags.dataFile, "data", "", "Dataset file (.json, .yaml)")
	runCmd.Flags().StringVar(&flags.mode, "mode", "concurrent", "Execution mode: concurrent, sequential, or cicd")
	runCmd.Flags().StringVar(&flags.evaluator, "evaluator", "lexical", "Default evaluator kind for sessions that name none")
	runCmd.Flags().StringSliceVar(&flags.requiredMetrics, "required-metrics", nil, "Metrics every turn must be scored on (default: the built-in quality metrics)")
	runCmd.Flags().IntVar(&flags.maxWorkers, "max-workers", runner.DefaultWorkers, "Maximum concurrently running sessions")
	runCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Overall run deadline (0 = none)")
	runCmd.Flags().DurationVar(&flags.turnDelay, "turn-delay", 0, "Pause between turns of a session, for rate limiting")
	runCmd.Flags().IntVar(&flags.maxConsecutiveFailures, "max-consecutive-failures", 0, "Abort a session after this many turn failures in a row (0 = never)")
	runCmd.Flags().Float64Var(&flags.minSuccessRate, "min-success-rate", 0.8, "Quality gate: minimum turn success rate")
	runCmd.Flags().Float64Var(&flags.minAverageScore, "min-average-score", 0.7, "Quality gate: minimum average score per required metric")
	runCmd.Flags().DurationVar(&flags.maxExecutionTime, "max-execution-time", 5*time.Minute, "Quality gate: maximum run duration")
	runCmd.Flags().IntVar(&flags.maxFailedTurns, "max-failed-turns", 5, "Quality gate: maximum failed turns")
	runCmd.Flags().Float64Var(&flags.regressionTolerance, "regression-tolerance", 0, "Allowed drop below the baseline before flagging a regression")
	runCmd.Flags().IntVar(&flags.history, "history", cicd.DefaultHistoryWindow, "Prior runs averaged into the regression baseline")
	runCmd.Flags().StringVar(&flags.storageKind, "storage", "file", "Run history backend: memory, file, or sqlite")
	runCmd.Flags().StringVar(&flags.storagePath, "storage-path", "", "Path for the file or sqlite backend")
	runCmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory for report files (empty = no reports)")
	runCmd.Flags().StringVar(&flags.format, "output-format", "json", "Report format: json, yaml, or markdown")
	runCmd.Flags().StringVar(&flags.ciPlatform, "ci-platform", "none", "CI platform outputs: github, gitlab, or none")
	runCmd.Flags().BoolVar(&flags.otel, "otel", false, "Export OpenTelemetry traces (configured via OTEL_EXPORTER_OTLP_* env vars)")

	cobra.CheckErr(runCmd.MarkFlagRequired("data"))
}

func (f *runFlags) run(ctx context.Context) error {
	specs, err := dataset.Load(f.dataFile)
	if err != nil {
		return err
	}

	if err := evaluators.RegisterDefaults(); err != nil {
		return err
	}
	required := evaluation.DefaultMetrics()
	if len(f.requiredMetrics) > 0 {
		required = required[:0]
		for _, m := range f.requiredMetrics {
			required = append(required, evaluation.MetricType(strings.TrimSpace(m)))
		}
	}
	evaluator, err := evaluation.New(f.evaluator, evaluation.Config{Metrics: required})
	if err != nil {
		return err
	}
	adapter, err := evaluation.NewAdapter(evaluator, required)
	if err != nil {
		return err
	}

	recorder := telemetry.NewRecorder(nil)
	if f.otel {
		service, err := telemetry.New(ctx, telemetry.WithServiceName("dialogbench"))
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := service.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()
		service.SetGlobalOtelProviders()
		recorder = telemetry.NewRecorder(service.TracerProvider())
	}

	r, err := runner.New(runner.Config{
		Specs:                  specs,
		Invoker:                agent.Echo{},
		Adapter:                adapter,
		Workers:                f.maxWorkers,
		Sequential:             f.mode == "sequential",
		Timeout:                f.timeout,
		TurnDelay:              f.turnDelay,
		MaxConsecutiveFailures: f.maxConsecutiveFailures,
		Recorder:               recorder,
	})
	if err != nil {
		return err
	}

	result, runErr := r.Run(ctx)
	if runErr != nil {
		log.Warn().Err(runErr).Msg("run ended early")
	}

	gateCfg := gate.Config{
		MinSuccessRate:      f.minSuccessRate,
		MinAverageScore:     f.minAverageScore,
		MaxExecutionTime:    f.maxExecutionTime,
		MaxFailedTurns:      f.maxFailedTurns,
		RequiredMetrics:     required,
		RegressionTolerance: f.regressionTolerance,
	}

	switch f.mode {
	case "cicd":
		return f.runPipeline(ctx, result, gateCfg)
	case "concurrent", "sequential":
		return f.printVerdict(result, gateCfg)
	default:
		return fmt.Errorf("unknown mode %q (want concurrent, sequential, or cicd)", f.mode)
	}
}

// runPipeline gates the run against stored history and exits non-zero when
// the gate fails.
func (f *runFlags) runPipeline(ctx context.Context, result *runner.EvaluationResult, gateCfg gate.Config) error {
	store, err := root.OpenStorage(f.storageKind, f.storagePath)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return err
	}

	pipeline, err := cicd.New(cicd.Config{
		Gate:          gateCfg,
		HistoryWindow: f.history,
		Platform:      cicd.Platform(f.ciPlatform),
		OutputDir:     f.outputDir,
		OutputFormat:  format,
	}, store, nil)
	if err != nil {
		return err
	}

	outcome, err := pipeline.Run(ctx, result)
	if err != nil {
		return err
	}

	printChecks(outcome.Verdict)
	fmt.Printf("\nPipeline status: %s\n", outcome.Status)
	if code := outcome.Status.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

// printVerdict gates the run locally, stores the record for future
// baselines, and prints the check table.
func (f *runFlags) printVerdict(result *runner.EvaluationResult, gateCfg gate.Config) error {
	verdict := gate.Evaluate(result.GateMetrics(), gateCfg, nil)

	status := "passed"
	if !verdict.Passed {
		status = "failed"
	}
	if store, err := root.OpenStorage(f.storageKind, f.storagePath); err == nil {
		record := storage.NewRunRecord(result, verdict, status)
		if err := store.SaveRun(context.Background(), record); err != nil {
			log.Warn().Err(err).Msg("run record not persisted")
		}
	} else {
		log.Warn().Err(err).Msg("run history unavailable")
	}

	fmt.Printf("Run %s: %d sessions, %d turns, %.1f%% success in %s\n\n",
		result.RunID, result.TotalSessions, result.TotalTurns,
		result.SuccessRate*100, result.Duration.Round(time.Millisecond))
	printChecks(verdict)

	if !verdict.Passed {
		os.Exit(1)
	}
	return nil
}

func printChecks(verdict *gate.Verdict) {
	for _, check := range verdict.Checks {
		mark := "PASS"
		if !check.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-40s %.3f (threshold %.3f)\n", mark, check.Name, check.Value, check.Threshold)
	}
	if verdict.RegressionDetected {
		fmt.Println("\n  Regressions against baseline:")
		for _, reg := range verdict.Regressions {
			fmt.Printf("    %-30s %.3f -> %.3f (drop %.3f)\n", reg.Metric, reg.Baseline, reg.Current, reg.Delta)
		}
	}
}
