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

package hook

import (
	"sync"
	"time"
)

// Entry is one appended record of the execution log.
type Entry struct {
	InvocationID string    `json:"invocation_id"`
	Result       Result    `json:"result"`
	At           time.Time `json:"at"`
}

// Summary aggregates the execution log.
type Summary struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`
}

// ExecutionLog is an append-only record of every hook invocation performed
// through a registry. It is safe for concurrent append; entries are never
// mutated after being added. The log is owned by whoever constructed the
// registry, so tests can inject a fresh instance per run.
type ExecutionLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewExecutionLog creates an empty log.
func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{}
}

// Append adds an entry to the log.
func (l *ExecutionLog) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of all entries in append order.
func (l *ExecutionLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *ExecutionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes all entries. The log grows for the lifetime of the registry
// otherwise.
func (l *ExecutionLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Summary returns counts and the success rate across all recorded
// invocations. An empty log has a success rate of zero.
func (l *ExecutionLog) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{Total: len(l.entries)}
	for _, e := range l.entries {
		switch e.Result.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailure:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	return s
}
