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

package agent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dialogbench/dialogbench/agent"
)

func TestRetryNext(t *testing.T) {
	policy := agent.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     15 * time.Millisecond,
		Multiplier:     2,
	}
	transient := agent.Transient(errors.New("busy"))

	retry := agent.NewRetry(policy)

	delay, again := retry.Next(transient)
	if !again || delay != 10*time.Millisecond {
		t.Errorf("Next() #1 = (%v, %t), want (10ms, true)", delay, again)
	}
	delay, again = retry.Next(transient)
	if !again || delay != 15*time.Millisecond {
		t.Errorf("Next() #2 = (%v, %t), want (15ms, true) after backoff cap", delay, again)
	}
	if _, again = retry.Next(transient); again {
		t.Errorf("Next() #3 = retry, want stop once attempts are exhausted")
	}
	if got := retry.Attempts(); got != 3 {
		t.Errorf("Attempts() = %d, want 3", got)
	}
}

func TestRetryNextStops(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success", err: nil},
		{name: "permanent failure", err: agent.Permanent(errors.New("bad request"))},
		{name: "unclassified failure", err: errors.New("unknown")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry := agent.NewRetry(agent.DefaultRetryPolicy())
			if _, again := retry.Next(tt.err); again {
				t.Errorf("Next(%v) = retry, want stop", tt.err)
			}
		})
	}
}

// flakyInvoker fails the first failures calls with a transient error, then
// succeeds.
type flakyInvoker struct {
	failures int
	calls    int
}

func (f *flakyInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, agent.Transient(fmt.Errorf("attempt %d overloaded", f.calls))
	}
	return &agent.Response{Output: "ok"}, nil
}

func TestDoRecoversFromTransientFailures(t *testing.T) {
	inv := &flakyInvoker{failures: 2}
	policy := agent.RetryPolicy{MaxAttempts: 3, Multiplier: 2}

	resp, attempts, err := agent.Do(t.Context(), inv, agent.Request{Input: "hi"}, policy)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if resp.Output != "ok" {
		t.Errorf("Do() output = %q, want %q", resp.Output, "ok")
	}
	if attempts != 3 {
		t.Errorf("Do() attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	inv := &flakyInvoker{failures: 10}
	policy := agent.RetryPolicy{MaxAttempts: 2, Multiplier: 2}

	_, attempts, err := agent.Do(t.Context(), inv, agent.Request{}, policy)
	if !errors.Is(err, agent.ErrExhausted) {
		t.Errorf("Do() error = %v, want ErrExhausted", err)
	}
	if attempts != 2 {
		t.Errorf("Do() attempts = %d, want 2", attempts)
	}
	if inv.calls != 2 {
		t.Errorf("invoker calls = %d, want 2", inv.calls)
	}
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	wantErr := errors.New("no such agent")
	inv := agent.InvokerFunc(func(ctx context.Context, req agent.Request) (*agent.Response, error) {
		return nil, agent.Permanent(wantErr)
	})

	_, attempts, err := agent.Do(t.Context(), inv, agent.Request{}, agent.DefaultRetryPolicy())
	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want wrapped %v", err, wantErr)
	}
	if errors.Is(err, agent.ErrExhausted) {
		t.Errorf("Do() error = %v, should not report exhaustion", err)
	}
	if attempts != 1 {
		t.Errorf("Do() attempts = %d, want 1", attempts)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	inv := agent.InvokerFunc(func(ctx context.Context, req agent.Request) (*agent.Response, error) {
		return nil, agent.Transient(errors.New("busy"))
	})

	_, _, err := agent.Do(ctx, inv, agent.Request{}, agent.DefaultRetryPolicy())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDoRejectsInvalidPolicy(t *testing.T) {
	_, _, err := agent.Do(t.Context(), agent.Echo{}, agent.Request{}, agent.RetryPolicy{})
	if err == nil {
		t.Errorf("Do() with zero policy should have failed")
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantPermanent bool
	}{
		{name: "nil", err: nil, wantTransient: false, wantPermanent: false},
		{name: "transient", err: agent.Transient(base), wantTransient: true, wantPermanent: false},
		{name: "permanent", err: agent.Permanent(base), wantTransient: false, wantPermanent: true},
		{name: "unclassified", err: base, wantTransient: false, wantPermanent: true},
		{name: "wrapped transient", err: fmt.Errorf("turn 2: %w", agent.Transient(base)), wantTransient: true, wantPermanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agent.IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %t, want %t", got, tt.wantTransient)
			}
			if got := agent.IsPermanent(tt.err); got != tt.wantPermanent {
				t.Errorf("IsPermanent() = %t, want %t", got, tt.wantPermanent)
			}
		})
	}
}
