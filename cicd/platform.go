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

package cicd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dialogbench/dialogbench/storage"
)

// Platform selects which CI system receives machine-readable outputs.
type Platform string

const (
	PlatformNone   Platform = "none"
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

func (p Platform) validate() error {
	switch p {
	case "", PlatformNone, PlatformGitHub, PlatformGitLab:
		return nil
	default:
		return fmt.Errorf("cicd: unknown CI platform %q (want github, gitlab, or none)", p)
	}
}

// emit writes the platform-specific output for a gated record.
func (p Platform) emit(record *storage.RunRecord) error {
	switch p {
	case PlatformGitHub:
		return emitGitHub(record)
	case PlatformGitLab:
		return emitGitLab(record)
	default:
		return nil
	}
}

// outputs returns the key/value pairs both platforms publish.
func outputs(record *storage.RunRecord) []string {
	passed := record.GateVerdict != nil && record.GateVerdict.Passed
	return []string{
		fmt.Sprintf("evaluation_passed=%t", passed),
		fmt.Sprintf("success_rate=%.4f", record.Metrics.SuccessRate),
		fmt.Sprintf("overall_score=%.4f", record.Metrics.OverallScore()),
		fmt.Sprintf("failed_turns=%d", record.Metrics.FailedTurns),
		fmt.Sprintf("regression_detected=%t", record.RegressionDetected),
	}
}

// emitGitHub appends step outputs to the file GitHub Actions names in
// GITHUB_OUTPUT. Outside of Actions the variable is unset and nothing is
// written.
func emitGitHub(record *storage.RunRecord) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return fmt.Errorf("GITHUB_OUTPUT is not set")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(outputs(record), "\n") + "\n"); err != nil {
		return fmt.Errorf("write GITHUB_OUTPUT: %w", err)
	}
	return nil
}

// emitGitLab writes a dotenv artifact next to the working directory, to be
// picked up with `artifacts:reports:dotenv: evaluation.env`.
func emitGitLab(record *storage.RunRecord) error {
	lines := outputs(record)
	for i, line := range lines {
		// dotenv keys are conventionally upper case.
		key, value, _ := strings.Cut(line, "=")
		lines[i] = strings.ToUpper(key) + "=" + value
	}
	path := filepath.Join(".", "evaluation.env")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
