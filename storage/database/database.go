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

// Package database provides a SQLite-backed run history store. It is the
// baseline source for CI pipelines that gate against the last few runs.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/storage"
)

// cacheSize bounds the GetRun read cache. Run records are small and CI
// queries hit the same handful of recent runs.
const cacheSize = 128

// runRow is the persisted schema. The full record is stored as a JSON
// document; the flat columns exist for ordering and filtering.
type runRow struct {
	RunID              string    `gorm:"primaryKey;column:run_id"`
	CreatedAt          time.Time `gorm:"index;column:created_at"`
	Status             string    `gorm:"column:status"`
	SuccessRate        float64   `gorm:"column:success_rate"`
	RegressionDetected bool      `gorm:"column:regression_detected"`
	Record             recordDoc `gorm:"column:record"`
}

func (runRow) TableName() string { return "evaluation_runs" }

// Storage persists run records in a SQLite database.
type Storage struct {
	db    *gorm.DB
	cache *lru.Cache[string, *storage.RunRecord]
}

var _ storage.Storage = (*Storage)(nil)

// Open opens (creating if needed) the database at path and migrates the
// schema. The path ":memory:" opens an in-process database for tests.
func Open(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}
	cache, err := lru.New[string, *storage.RunRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("database: create cache: %w", err)
	}
	return &Storage{db: db, cache: cache}, nil
}

// SaveRun implements [storage.Storage].
func (s *Storage) SaveRun(ctx context.Context, record *storage.RunRecord) error {
	if record == nil || record.RunID == "" {
		return storage.ErrInvalidRecord
	}

	row := runRow{
		RunID:              record.RunID,
		CreatedAt:          record.CreatedAt,
		Status:             record.Status,
		SuccessRate:        record.Metrics.SuccessRate,
		RegressionDetected: record.RegressionDetected,
		Record:             recordDoc{record: record},
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("database: save run %s: %w", record.RunID, err)
	}
	// Invalidate rather than populate: the cache holds only records that
	// were read back, so cached copies never alias the caller's pointer.
	s.cache.Remove(record.RunID)
	return nil
}

// GetRun implements [storage.Storage].
func (s *Storage) GetRun(ctx context.Context, runID string) (*storage.RunRecord, error) {
	if cached, ok := s.cache.Get(runID); ok {
		return cloneThrough(cached)
	}

	var row runRow
	err := s.db.WithContext(ctx).First(&row, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database: get run %s: %w", runID, err)
	}

	s.cache.Add(runID, row.Record.record)
	return cloneThrough(row.Record.record)
}

// ListRuns implements [storage.Storage].
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*storage.RunRecord, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, run_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("database: list runs: %w", err)
	}

	records := make([]*storage.RunRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record.record
	}
	return records, nil
}

// RecentBaselines implements [storage.Storage].
func (s *Storage) RecentBaselines(ctx context.Context, n int) ([]gate.Baseline, error) {
	records, err := s.ListRuns(ctx, n)
	if err != nil {
		return nil, err
	}
	baselines := make([]gate.Baseline, len(records))
	for i, r := range records {
		baselines[i] = r.Baseline()
	}
	return baselines, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
