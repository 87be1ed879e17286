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

// Package report renders persisted run records for humans and CI logs.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dialogbench/dialogbench/evaluation"
	"github.com/dialogbench/dialogbench/storage"
)

// Format selects the report output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name from a flag or config file.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q (want json, yaml, or markdown)", s)
	}
}

// extension returns the file extension for the format.
func (f Format) extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Render serializes a record in the given format.
func Render(record *storage.RunRecord, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(record, "", "  ")
	case FormatYAML:
		return yaml.Marshal(record)
	case FormatMarkdown:
		return renderMarkdown(record), nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

// Write renders the record into dir as evaluation_report_<runID>.<ext> and
// additionally dumps the raw record as evaluation_results_<timestamp>.json.
// It returns the report path.
func Write(dir string, format Format, record *storage.RunRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("report: create output directory: %w", err)
	}

	rendered, err := Render(record, format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("evaluation_report_%s.%s", record.RunID, format.extension()))
	if err := os.WriteFile(path, rendered, 0644); err != nil {
		return "", fmt.Errorf("report: write report: %w", err)
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal raw results: %w", err)
	}
	stamp := record.CreatedAt.UTC().Format("20060102T150405Z")
	rawPath := filepath.Join(dir, fmt.Sprintf("evaluation_results_%s.json", stamp))
	if err := os.WriteFile(rawPath, raw, 0644); err != nil {
		return "", fmt.Errorf("report: write raw results: %w", err)
	}

	return path, nil
}

// renderMarkdown lays the record out as a CI-friendly summary: status,
// aggregate table, per-check table, regressions, and the hook summary.
func renderMarkdown(record *storage.RunRecord) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Evaluation Report\n\n")
	fmt.Fprintf(&b, "- **Run ID**: `%s`\n", record.RunID)
	fmt.Fprintf(&b, "- **Created**: %s\n", record.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Status**: %s\n\n", strings.ToUpper(record.Status))

	m := record.Metrics
	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Sessions | Turns | Passed | Failed | Success Rate | Execution Time |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %.1f%% | %s |\n\n",
		m.TotalSessions, m.TotalTurns, m.PassedTurns, m.FailedTurns,
		m.SuccessRate*100, m.ExecutionTime.Round(time.Millisecond))

	if len(m.AverageScores) > 0 {
		fmt.Fprintf(&b, "## Average Scores\n\n")
		fmt.Fprintf(&b, "| Metric | Score |\n|---|---|\n")
		metrics := make([]string, 0, len(m.AverageScores))
		for metric := range m.AverageScores {
			metrics = append(metrics, string(metric))
		}
		sort.Strings(metrics)
		for _, metric := range metrics {
			fmt.Fprintf(&b, "| %s | %.3f |\n", metric, m.AverageScores[evaluation.MetricType(metric)])
		}
		b.WriteString("\n")
	}

	if v := record.GateVerdict; v != nil {
		fmt.Fprintf(&b, "## Quality Gate\n\n")
		fmt.Fprintf(&b, "| Check | Result | Value | Threshold |\n|---|---|---|---|\n")
		for _, check := range v.Checks {
			result := "PASS"
			if !check.Passed {
				result = "FAIL"
			}
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.3f |\n", check.Name, result, check.Value, check.Threshold)
		}
		b.WriteString("\n")

		if v.RegressionDetected {
			fmt.Fprintf(&b, "## Regressions\n\n")
			fmt.Fprintf(&b, "| Metric | Baseline | Current | Drop |\n|---|---|---|---|\n")
			for _, reg := range v.Regressions {
				fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f |\n", reg.Metric, reg.Baseline, reg.Current, reg.Delta)
			}
			b.WriteString("\n")
		}
	}

	h := record.HookSummary
	if h.Total > 0 {
		fmt.Fprintf(&b, "## Hooks\n\n")
		fmt.Fprintf(&b, "%d invocations: %d succeeded, %d failed, %d skipped (%.1f%% success)\n",
			h.Total, h.Succeeded, h.Failed, h.Skipped, h.SuccessRate*100)
	}

	return []byte(b.String())
}
