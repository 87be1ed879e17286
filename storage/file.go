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

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dialogbench/dialogbench/gate"
)

// FileStorage persists run records as JSON files:
//
//	<basePath>/
//	  runs/
//	    <run_id>.json
type FileStorage struct {
	mu       sync.RWMutex
	basePath string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates a file-backed store rooted at basePath, creating
// the directory structure as needed.
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "runs"), 0755); err != nil {
		return nil, fmt.Errorf("storage: create runs directory: %w", err)
	}
	return &FileStorage{basePath: basePath}, nil
}

func (f *FileStorage) runPath(runID string) string {
	return filepath.Join(f.basePath, "runs", runID+".json")
}

// SaveRun implements [Storage].
func (f *FileStorage) SaveRun(ctx context.Context, record *RunRecord) error {
	if record == nil || record.RunID == "" {
		return ErrInvalidRecord
	}
	if strings.ContainsAny(record.RunID, `/\`) {
		return fmt.Errorf("storage: run id %q must not contain path separators", record.RunID)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal run record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(f.runPath(record.RunID), data, 0644); err != nil {
		return fmt.Errorf("storage: write run record: %w", err)
	}
	return nil
}

// GetRun implements [Storage].
func (f *FileStorage) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read run record: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("storage: unmarshal run record %s: %w", runID, err)
	}
	return &record, nil
}

// ListRuns implements [Storage].
func (f *FileStorage) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(f.basePath, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}

	var records []*RunRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.basePath, "runs", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: read run record: %w", err)
		}
		var record RunRecord
		if err := json.Unmarshal(data, &record); err != nil {
			// A corrupt record must not hide the healthy ones.
			continue
		}
		records = append(records, &record)
	}

	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// RecentBaselines implements [Storage].
func (f *FileStorage) RecentBaselines(ctx context.Context, n int) ([]gate.Baseline, error) {
	records, err := f.ListRuns(ctx, n)
	if err != nil {
		return nil, err
	}
	return baselinesOf(records), nil
}
