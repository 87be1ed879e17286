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
	"fmt"
	"reflect"
	"sort"
)

// Context carries named values into hook invocations. The same instance is
// passed to every hook of one dispatch, so later hooks observe earlier
// hooks' additions.
//
// Mutation is additive only: hooks may attach new keys and may overwrite an
// existing key with a value of the same dynamic type, but removing a key or
// changing its type is a contract violation and fails with an error. A hook
// that returns such an error is recorded as failed.
//
// A Context is not safe for concurrent use; dispatch passes it to hooks
// sequentially.
type Context struct {
	values map[string]any
}

// NewContext creates a context seeded with the given values. The seed map is
// copied; nil is allowed.
func NewContext(seed map[string]any) *Context {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &Context{values: values}
}

// Get returns the value for key and whether it is present.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set attaches a value to the context. Setting a new key always succeeds.
// Overwriting an existing key requires the same dynamic type; nil values are
// rejected because storing nil is indistinguishable from removal.
func (c *Context) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("hook: context key must not be empty")
	}
	if value == nil {
		return fmt.Errorf("hook: nil value for context key %q", key)
	}
	if prev, ok := c.values[key]; ok && prev != nil {
		if reflect.TypeOf(prev) != reflect.TypeOf(value) {
			return fmt.Errorf("hook: cannot retype context key %q from %T to %T", key, prev, value)
		}
	}
	c.values[key] = value
	return nil
}

// Keys returns the attached keys in sorted order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of attached keys.
func (c *Context) Len() int {
	return len(c.values)
}

// Snapshot returns a shallow copy of the attached values.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
