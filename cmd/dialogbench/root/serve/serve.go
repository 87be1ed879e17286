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

// Package serve implements `dialogbench serve`.
package serve

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialogbench/dialogbench/cmd/dialogbench/root"
	"github.com/dialogbench/dialogbench/server"
)

type serveFlags struct {
	addr        string
	storageKind string
	storagePath string
}

var flags serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored evaluation runs over a read-only HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return flags.serve(cmd.Context())
	},
}

func init() {
	root.Cmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flags.addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&flags.storageKind, "storage", "file", "Run history backend: memory, file, or sqlite")
	serveCmd.Flags().StringVar(&flags.storagePath, "storage-path", "", "Path for the file or sqlite backend")
}

func (f *serveFlags) serve(ctx context.Context) error {
	store, err := root.OpenStorage(f.storageKind, f.storagePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(f.addr, store)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
