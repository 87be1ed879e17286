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

// The dialogbench command evaluates conversational agents by running
// scripted multi-turn sessions, scoring every turn, and gating the
// aggregate for release.
package main

import (
	"github.com/dialogbench/dialogbench/cmd/dialogbench/root"

	// Subcommands register themselves with the root command.
	_ "github.com/dialogbench/dialogbench/cmd/dialogbench/root/gate"
	_ "github.com/dialogbench/dialogbench/cmd/dialogbench/root/run"
	_ "github.com/dialogbench/dialogbench/cmd/dialogbench/root/serve"
)

func main() {
	root.Execute()
}
