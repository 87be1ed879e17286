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

package hook_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dialogbench/dialogbench/hook"
)

func TestContextSet(t *testing.T) {
	tests := []struct {
		name    string
		seed    map[string]any
		key     string
		value   any
		wantErr bool
	}{
		{
			name:  "new key",
			key:   "fresh",
			value: 42,
		},
		{
			name:  "overwrite same type",
			seed:  map[string]any{"count": 1},
			key:   "count",
			value: 2,
		},
		{
			name:    "retype rejected",
			seed:    map[string]any{"count": 1},
			key:     "count",
			value:   "two",
			wantErr: true,
		},
		{
			name:    "nil value rejected",
			key:     "gone",
			value:   nil,
			wantErr: true,
		},
		{
			name:    "empty key rejected",
			key:     "",
			value:   1,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hctx := hook.NewContext(tt.seed)
			err := hctx.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q, %v) error = %v, wantErr %t", tt.key, tt.value, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			got, ok := hctx.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) missing after Set", tt.key)
			}
			if got != tt.value {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.value)
			}
		})
	}
}

func TestContextSeedIsCopied(t *testing.T) {
	seed := map[string]any{"a": 1}
	hctx := hook.NewContext(seed)
	seed["b"] = 2

	if _, ok := hctx.Get("b"); ok {
		t.Errorf("context observed mutation of the seed map")
	}
}

func TestContextKeysAndSnapshot(t *testing.T) {
	hctx := hook.NewContext(map[string]any{"zulu": 1, "alpha": 2})
	if err := hctx.Set("mike", 3); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"alpha", "mike", "zulu"}, hctx.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if hctx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", hctx.Len())
	}

	snap := hctx.Snapshot()
	snap["intruder"] = true
	if _, ok := hctx.Get("intruder"); ok {
		t.Errorf("mutating the snapshot leaked into the context")
	}
}
