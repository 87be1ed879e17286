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
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrDuplicateHook is returned by Register when a hook with the same name is
// already registered for the same type.
var ErrDuplicateHook = errors.New("hook: duplicate hook")

type registered struct {
	hook Hook
	seq  int
}

// Registry stores hooks by lifecycle type and dispatches them. The registry
// is safe for concurrent use: registration typically happens once at setup
// and dispatch is read-heavy for the remainder of the run. Every dispatch
// appends its results to the registry's execution log.
type Registry struct {
	mu    sync.RWMutex
	hooks map[Type][]registered
	seq   int
	log   *ExecutionLog
}

// Option configures a Registry.
type Option func(*Registry)

// WithExecutionLog injects the execution log the registry appends to. By
// default each registry owns a fresh log.
func WithExecutionLog(l *ExecutionLog) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		hooks: make(map[Type][]registered),
		log:   NewExecutionLog(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a hook. It fails with ErrDuplicateHook when a hook with the
// same name is already registered for the same type; the same name may be
// reused across different types.
func (r *Registry) Register(h Hook) error {
	if h.Name == "" {
		return fmt.Errorf("hook: name is required")
	}
	if !h.Type.Valid() {
		return fmt.Errorf("hook: unknown hook type %q", h.Type)
	}
	if h.Func == nil {
		return fmt.Errorf("hook: func is required for hook %q", h.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.hooks[h.Type] {
		if reg.hook.Name == h.Name {
			return fmt.Errorf("%w: %s hook %q", ErrDuplicateHook, h.Type, h.Name)
		}
	}
	r.seq++
	r.hooks[h.Type] = append(r.hooks[h.Type], registered{hook: h, seq: r.seq})
	return nil
}

// Unregister removes the named hook of the given type and reports whether it
// was present.
func (r *Registry) Unregister(t Type, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.hooks[t]
	for i, reg := range regs {
		if reg.hook.Name == name {
			r.hooks[t] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// Hooks returns the hooks registered for t in dispatch order.
func (r *Registry) Hooks(t Type) []Hook {
	out := make([]Hook, 0)
	for _, reg := range r.ordered(t) {
		out = append(out, reg.hook)
	}
	return out
}

// Len returns the total number of registered hooks across all types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, regs := range r.hooks {
		n += len(regs)
	}
	return n
}

// Log returns the registry's execution log.
func (r *Registry) Log() *ExecutionLog {
	return r.log
}

// Dispatch runs all hooks registered for t in ascending priority order,
// breaking ties by registration order, passing the same context instance to
// each hook in turn. Errors and panics are converted into failure results;
// a failing hook never prevents the remaining hooks from running and
// Dispatch never returns an error. One log entry is appended per invocation.
//
// Results are returned in execution order. Dispatching a type with no hooks
// returns an empty slice.
func (r *Registry) Dispatch(ctx context.Context, t Type, hctx *Context) []Result {
	if hctx == nil {
		hctx = NewContext(nil)
	}

	regs := r.ordered(t)
	results := make([]Result, 0, len(regs))
	for _, reg := range regs {
		res := runHook(ctx, reg.hook, hctx)
		results = append(results, res)
		r.log.Append(Entry{
			InvocationID: uuid.NewString(),
			Result:       res,
			At:           time.Now(),
		})

		if res.Status == StatusFailure {
			evt := log.Warn()
			if t == TypeErrorHandler {
				evt = log.Error()
			}
			evt.Str("hook", reg.hook.Name).
				Str("hook_type", t.String()).
				Str("message", res.Message).
				Msg("hook failed")
		}
	}
	return results
}

// ordered snapshots the hooks for t sorted by priority, stable on
// registration order.
func (r *Registry) ordered(t Type) []registered {
	r.mu.RLock()
	regs := make([]registered, len(r.hooks[t]))
	copy(regs, r.hooks[t])
	r.mu.RUnlock()

	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].hook.Priority < regs[j].hook.Priority
	})
	return regs
}

// runHook invokes a single hook, converting errors and panics into failure
// results and stamping the measured duration.
func runHook(ctx context.Context, h Hook, hctx *Context) (res Result) {
	start := time.Now()

	defer func() {
		if v := recover(); v != nil {
			res = Result{
				Status:  StatusFailure,
				Message: fmt.Sprintf("panic: %v", v),
			}
		}
		res.HookName = h.Name
		res.HookType = h.Type
		res.Duration = time.Since(start)
		if res.Status == "" {
			res.Status = StatusSuccess
		}
	}()

	out, err := h.Func(ctx, hctx)
	if err != nil {
		msg := err.Error()
		if out != nil && out.Message != "" {
			msg = out.Message + ": " + msg
		}
		return Result{Status: StatusFailure, Message: msg}
	}
	if out == nil {
		return Result{Status: StatusSuccess}
	}
	return *out
}
