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

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by [Do] when a transient failure persists through
// every allowed attempt.
var ErrExhausted = errors.New("agent: retry attempts exhausted")

// RetryPolicy controls how [Do] repeats failed invocations.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
	// Multiplier scales the delay after each attempt.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	// PerCallTimeout bounds each individual invocation. Zero means no
	// per-call bound beyond the caller's context.
	PerCallTimeout time.Duration `json:"per_call_timeout" yaml:"per_call_timeout"`
}

// DefaultRetryPolicy returns the policy used when a session spec does not
// override retry behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
	}
}

// Validate reports the first problem with the policy, if any.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("agent: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 {
		return fmt.Errorf("agent: initial backoff must not be negative, got %v", p.InitialBackoff)
	}
	if p.MaxBackoff < 0 {
		return fmt.Errorf("agent: max backoff must not be negative, got %v", p.MaxBackoff)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("agent: multiplier must be at least 1, got %v", p.Multiplier)
	}
	return nil
}

// Retry is the decision state for one retried invocation. Each call to
// [Retry.Next] consumes an attempt's outcome and reports whether another
// attempt should run and after what delay. Retry performs no sleeping or
// invoking itself, which keeps the transitions testable without clocks.
type Retry struct {
	policy   RetryPolicy
	attempts int
	delay    time.Duration
}

// NewRetry returns the initial retry state for the policy.
func NewRetry(policy RetryPolicy) *Retry {
	return &Retry{policy: policy, delay: policy.InitialBackoff}
}

// Attempts returns the number of outcomes consumed so far.
func (r *Retry) Attempts() int { return r.attempts }

// Next consumes the outcome of the latest attempt. It returns the delay to
// wait and true when another attempt should run. Success, permanent
// failures, and exhausted attempt budgets all stop the retry loop.
func (r *Retry) Next(err error) (time.Duration, bool) {
	r.attempts++
	if err == nil || !IsTransient(err) {
		return 0, false
	}
	if r.attempts >= r.policy.MaxAttempts {
		return 0, false
	}
	delay := r.delay
	r.delay = time.Duration(float64(r.delay) * r.policy.Multiplier)
	if r.policy.MaxBackoff > 0 && r.delay > r.policy.MaxBackoff {
		r.delay = r.policy.MaxBackoff
	}
	return delay, true
}

// Do invokes the agent, retrying transient failures per the policy. It
// returns the response, the number of attempts made, and the final error.
// When the attempt budget runs out the error wraps [ErrExhausted] and the
// last transient failure.
//
// A per-attempt deadline expiring counts as transient as long as the
// caller's context is still alive; the caller's own cancellation always
// stops the loop immediately.
func Do(ctx context.Context, inv Invoker, req Request, policy RetryPolicy) (*Response, int, error) {
	if err := policy.Validate(); err != nil {
		return nil, 0, err
	}

	retry := NewRetry(policy)
	for {
		resp, err := invokeOnce(ctx, inv, req, policy.PerCallTimeout)

		delay, again := retry.Next(err)
		if !again {
			if err != nil && IsTransient(err) && retry.Attempts() >= policy.MaxAttempts {
				return nil, retry.Attempts(), fmt.Errorf("%w after %d attempts: %w", ErrExhausted, retry.Attempts(), err)
			}
			return resp, retry.Attempts(), err
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, retry.Attempts(), err
		}
	}
}

func invokeOnce(ctx context.Context, inv Invoker, req Request, timeout time.Duration) (*Response, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := inv.Invoke(callCtx, req)
	if err == nil {
		return resp, nil
	}
	// Attempt deadlines are retryable while the caller's context lives.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, Transient(err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
