// Package main provides the entry point for the crucible CLI.
package main

import (
	"context"
	"os"

	"github.com/crucidev/crucible/internal/cli"
	"github.com/crucidev/crucible/internal/signal"
)

// Build information set via ldflags.
var (
	version = "" //nolint:gochecknoglobals // Set at build time
	commit  = "" //nolint:gochecknoglobals // Set at build time
	date    = "" //nolint:gochecknoglobals // Set at build time
)

func main() {
	// SIGINT and SIGTERM cancel the context; the engine honors the
	// cancellation at the next stage boundary.
	h := signal.NewHandler(context.Background())
	defer h.Stop()

	err := cli.Execute(h.Context(), cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
