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

// Package root holds the dialogbench root command. Subcommand packages
// attach themselves to [Cmd] from their init functions.
package root

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dialogbench/dialogbench/storage"
	"github.com/dialogbench/dialogbench/storage/database"
)

type rootFlags struct {
	verbose bool
}

var flags rootFlags

// Cmd is the root command of the dialogbench CLI.
var Cmd = &cobra.Command{
	Use:   "dialogbench",
	Short: "Evaluate conversational agents across scripted multi-turn sessions.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if flags.verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	Cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := Cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// OpenStorage resolves the --storage / --storage-path flag pair shared by
// the run, serve, and gate commands.
func OpenStorage(kind, path string) (storage.Storage, error) {
	switch strings.ToLower(kind) {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "file":
		if path == "" {
			path = ".dialogbench"
		}
		store, err := storage.NewFileStorage(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		if path == "" {
			path = "dialogbench.db"
		}
		store, err := database.Open(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want memory, file, or sqlite)", kind)
	}
}
