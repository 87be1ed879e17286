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

package testutil

import (
	"context"
	"sync"

	"github.com/dialogbench/dialogbench/hook"
)

// CallLog records labeled events from concurrently running hooks so tests
// can assert on dispatch order.
type CallLog struct {
	mu     sync.Mutex
	events []string
}

// Append records one event label.
func (l *CallLog) Append(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded labels in append order.
func (l *CallLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Hook returns a hook that appends its own name to the log when dispatched.
func (l *CallLog) Hook(name string, typ hook.Type, priority int) hook.Hook {
	return hook.Hook{
		Name:     name,
		Type:     typ,
		Priority: priority,
		Func: func(ctx context.Context, hctx *hook.Context) (*hook.Result, error) {
			l.Append(name)
			return nil, nil
		},
	}
}
