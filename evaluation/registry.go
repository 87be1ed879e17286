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

package evaluation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages available evaluator factories by kind.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new evaluator registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register registers an evaluator factory under a kind name.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("evaluation: evaluator kind is required")
	}
	if factory == nil {
		return fmt.Errorf("evaluation: nil factory for kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("evaluation: evaluator already registered for kind %q", kind)
	}
	r.factories[kind] = factory
	return nil
}

// New creates an evaluator of the given kind.
func (r *Registry) New(kind string, config Config) (Evaluator, error) {
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("evaluation: no evaluator registered for kind %q", kind)
	}
	return factory(config)
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// IsRegistered reports whether a factory is registered for the kind.
func (r *Registry) IsRegistered(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[kind]
	return exists
}

// DefaultRegistry is the process-wide registry used when no explicit
// registry is configured.
var DefaultRegistry = NewRegistry()

// Register registers an evaluator factory with the default registry.
func Register(kind string, factory Factory) error {
	return DefaultRegistry.Register(kind, factory)
}

// New creates an evaluator of the given kind from the default registry.
func New(kind string, config Config) (Evaluator, error) {
	return DefaultRegistry.New(kind, config)
}
