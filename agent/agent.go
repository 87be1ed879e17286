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

// Package agent defines the contract between the evaluation harness and the
// system under test.
//
// An [Invoker] wraps whatever transport reaches the agent: an in-process
// call, an HTTP client, a queue. The harness only sees turn inputs going in
// and responses with optional context deltas coming out. Invokers classify
// their failures with [Transient] or [Permanent] so the retry layer knows
// which calls are worth repeating; errors left unclassified are treated as
// permanent.
package agent

import "context"

// Request carries one dialogue turn to the agent under evaluation.
type Request struct {
	// SessionID identifies the dialogue session the turn belongs to.
	SessionID string `json:"session_id"`
	// Turn is the zero-based index of the turn within the session.
	Turn int `json:"turn"`
	// Input is the user message for this turn.
	Input string `json:"input"`
	// Context is the accumulated session context. The invoker must treat
	// it as read-only.
	Context map[string]any `json:"context,omitempty"`
}

// Response is the agent's reply to a single turn.
type Response struct {
	// Output is the agent's textual response.
	Output string `json:"output"`
	// ContextDelta holds key/value pairs the agent wants merged into the
	// session context before the next turn. Later turns overwrite earlier
	// values for the same key.
	ContextDelta map[string]any `json:"context_delta,omitempty"`
}

// Invoker executes a single turn against the agent under evaluation.
//
// Invoke must honor ctx cancellation and should classify retryable
// failures with [Transient].
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req Request) (*Response, error)

// Invoke implements [Invoker].
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
