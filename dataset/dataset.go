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

// Package dataset loads session specifications from JSON or YAML files.
//
// Dataset problems are configuration errors: they surface from [Load]
// before any session starts, never mid-run.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dialogbench/dialogbench/session"
)

// File is the on-disk dataset schema.
type File struct {
	// Name labels the dataset; informational only.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Sessions are the scripted dialogues to evaluate.
	Sessions []session.Spec `json:"sessions" yaml:"sessions"`
}

// ValidationError reports a malformed dataset. Path is the file it came
// from; Problems lists every violation found, not only the first.
type ValidationError struct {
	Path     string
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("dataset %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Load reads and validates a dataset file. The format follows the file
// extension: .json, or .yaml/.yml. Unknown top-level fields are tolerated.
func Load(path string) ([]session.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var file File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("dataset %s: unsupported extension %q (want .json, .yaml, or .yml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}

	if err := validate(path, file.Sessions); err != nil {
		return nil, err
	}
	return file.Sessions, nil
}

// validate collects every structural problem so the operator can fix the
// dataset in one pass.
func validate(path string, specs []session.Spec) error {
	var problems []string
	if len(specs) == 0 {
		problems = append(problems, "no sessions defined")
	}

	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		label := spec.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			problems = append(problems, fmt.Sprintf("session %s: missing id", label))
		}
		if seen[spec.ID] && spec.ID != "" {
			problems = append(problems, fmt.Sprintf("session %s: duplicate id", label))
		}
		seen[spec.ID] = true

		if len(spec.Turns) == 0 {
			problems = append(problems, fmt.Sprintf("session %s: no turns", label))
		}
		for j, turn := range spec.Turns {
			if turn.Input == "" {
				problems = append(problems, fmt.Sprintf("session %s turn %d: missing input", label, j))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Path: path, Problems: problems}
	}
	return nil
}
