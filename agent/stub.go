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

import "context"

// Echo is a trivial invoker that replies with the turn input. The CLI uses
// it for dry runs so a dataset and gate config can be exercised end to end
// without a live agent.
type Echo struct{}

var _ Invoker = Echo{}

// Invoke implements [Invoker].
func (Echo) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{Output: req.Input}, nil
}
