// Command drsimport imports rows from exported spreadsheet data into the
// normalized, foreign-key-linked entity CSV files.
//
// The pipeline is staged and append-only: `stage` is a dry run that
// validates and writes staged files, `commit` appends them to persisted
// storage behind a strict zero-error gate, and `commit-partial` appends
// only the entities that validated cleanly.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cctech/drsimport/internal/config"
	"github.com/cctech/drsimport/internal/logging"
)

var (
	cfg *config.Config

	// assumeYes skips the interactive confirmation gate before a commit.
	assumeYes bool
)

func main() {
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	loaded, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg = loaded

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	root := &cobra.Command{
		Use:           "drsimport",
		Short:         "Append-only spreadsheet-to-CSV import pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildSchemaCmd())
	root.AddCommand(newStageCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newCommitPartialCmd())
	root.AddCommand(newDiscardCmd())
	root.AddCommand(newPruneBackupsCmd())
	root.AddCommand(newHistoryCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
