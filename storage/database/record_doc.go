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

package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/dialogbench/dialogbench/storage"
)

// recordDoc serializes a full RunRecord as a JSON column, so the schema
// stays stable while the record type evolves.
type recordDoc struct {
	record *storage.RunRecord
}

func (recordDoc) GormDataType() string {
	return "text"
}

func (recordDoc) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "LONGTEXT"
	default:
		return ""
	}
}

// Value implements driver.Valuer.
func (d recordDoc) Value() (driver.Value, error) {
	if d.record == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d.record)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *recordDoc) Scan(value any) error {
	if value == nil {
		d.record = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("database: cannot scan record document from %T", value)
	}
	if len(bytes) == 0 {
		d.record = nil
		return nil
	}

	var record storage.RunRecord
	if err := json.Unmarshal(bytes, &record); err != nil {
		return err
	}
	d.record = &record
	return nil
}

// cloneThrough deep-copies a record via its JSON form, keeping cached
// entries isolated from callers.
func cloneThrough(record *storage.RunRecord) (*storage.RunRecord, error) {
	if record == nil {
		return nil, storage.ErrNotFound
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("database: clone record: %w", err)
	}
	var clone storage.RunRecord
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("database: clone record: %w", err)
	}
	return &clone, nil
}
