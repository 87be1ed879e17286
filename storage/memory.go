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
	"sort"
	"sync"

	"github.com/dialogbench/dialogbench/gate"
)

// MemoryStorage keeps run records in memory. Records are deep-copied on
// save and on read so callers can never mutate stored state. Intended for
// tests and single-shot CLI runs without a history directory.
type MemoryStorage struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{runs: make(map[string]*RunRecord)}
}

// SaveRun implements [Storage].
func (m *MemoryStorage) SaveRun(ctx context.Context, record *RunRecord) error {
	if record == nil || record.RunID == "" {
		return ErrInvalidRecord
	}
	clone, err := cloneRecord(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[record.RunID] = clone
	return nil
}

// GetRun implements [Storage].
func (m *MemoryStorage) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	m.mu.RLock()
	record, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record)
}

// ListRuns implements [Storage].
func (m *MemoryStorage) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	m.mu.RLock()
	records := make([]*RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		records = append(records, r)
	}
	m.mu.RUnlock()

	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]*RunRecord, len(records))
	for i, r := range records {
		clone, err := cloneRecord(r)
		if err != nil {
			return nil, err
		}
		out[i] = clone
	}
	return out, nil
}

// RecentBaselines implements [Storage].
func (m *MemoryStorage) RecentBaselines(ctx context.Context, n int) ([]gate.Baseline, error) {
	records, err := m.ListRuns(ctx, n)
	if err != nil {
		return nil, err
	}
	return baselinesOf(records), nil
}

// cloneRecord deep-copies via the record's JSON form, the same one every
// backend persists.
func cloneRecord(record *RunRecord) (*RunRecord, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("storage: clone record: %w", err)
	}
	var clone RunRecord
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("storage: clone record: %w", err)
	}
	return &clone, nil
}

// sortNewestFirst orders records by CreatedAt descending, run ID as the
// tie-break so listings stay deterministic.
func sortNewestFirst(records []*RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].RunID > records[j].RunID
	})
}

func baselinesOf(records []*RunRecord) []gate.Baseline {
	baselines := make([]gate.Baseline, len(records))
	for i, r := range records {
		baselines[i] = r.Baseline()
	}
	return baselines
}
