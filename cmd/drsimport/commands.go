package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cctech/drsimport/internal/admin"
	"github.com/cctech/drsimport/internal/commit"
	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/history"
	"github.com/cctech/drsimport/internal/mapping"
	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/schema"
	"github.com/cctech/drsimport/internal/sheet"
	"github.com/cctech/drsimport/internal/staging"
)

func newBuildSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-schema",
		Short: "Parse the declarative schema and build the schema artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(cfg.Schema.DefinitionPath)
			if err != nil {
				return fmt.Errorf("read schema definition %s: %w", cfg.Schema.DefinitionPath, err)
			}

			def, err := schema.Parse(string(text))
			if err != nil {
				return err
			}

			csvs, err := csvdata.ListTables(cfg.Paths.DataDir)
			if err != nil {
				return err
			}

			art := schema.Build(def, csvs)
			if err := art.Save(cfg.Schema.ArtifactPath); err != nil {
				return err
			}

			if cycle := schema.CycleMembers(art.Dependencies); len(cycle) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "WARNING: dependency cycle among: %s\n", strings.Join(cycle, ", "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d entities, %d enums)\n",
				cfg.Schema.ArtifactPath, len(art.Entities), len(art.Enums))
			fmt.Fprintf(cmd.OutOrStdout(), "Ingestion order: %s\n", strings.Join(art.IngestionOrder, " -> "))
			return nil
		},
	}
}

func newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Dry run: transform, validate, and stage rows without touching persisted data",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}

			report, err := engine.StageAll()
			if err != nil {
				return err
			}

			printReport(cmd, report)
			recordHistory(history.Entry{
				Action: history.ActionStage,
				Passes: report.Passes,
				Staged: report.TotalValid(),
				Errors: report.TotalErrors(),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "\nStaged files: %s\n", cfg.Paths.StagingDir)
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'drsimport commit' to append to persisted data.")
			return nil
		},
	}
}

func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Stage, then append all entities; aborts if any entity has errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}

			report, err := engine.StageAll()
			if err != nil {
				return err
			}
			printReport(cmd, report)

			if n := report.TotalErrors(); n > 0 {
				printErrors(cmd, report)
				return fmt.Errorf("commit aborted: %d validation errors, no files modified", n)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nRows to append: %d\n", report.TotalValid())
			for _, res := range report.Clean() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: +%d rows -> %s\n",
					res.Entity, res.ValidCount, csvdata.FileName(res.Entity))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backups will be saved to: %s\n", cfg.Paths.BackupDir)

			if !confirm(cmd, "Proceed with commit?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted by user, no files modified.")
				return nil
			}

			writer := commit.NewWriter(cfg.Paths.DataDir, cfg.Paths.BackupDir)
			summary, err := commit.Run(report, writer, commit.Strict)
			printSummary(cmd, summary)
			if summary != nil {
				recordHistory(commitEntry(history.ActionCommit, report, summary))
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newCommitPartialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-partial",
		Short: "Stage, then append only error-free entities; skip the rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}

			report, err := engine.StageAll()
			if err != nil {
				return err
			}
			printReport(cmd, report)

			clean := report.Clean()
			skipped := report.WithErrors()

			fmt.Fprintf(cmd.OutOrStdout(), "\nError-free entities (%d):\n", len(clean))
			for _, res := range clean {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: +%d rows -> %s\n",
					res.Entity, res.ValidCount, csvdata.FileName(res.Entity))
			}
			if len(skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped entities (%d):\n", len(skipped))
				for _, res := range skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d valid, %d errors (SKIPPED)\n",
						res.Entity, res.ValidCount, res.ErrorCount)
				}
			}

			if len(clean) == 0 {
				return fmt.Errorf("commit aborted: no error-free entities to append")
			}

			if !confirm(cmd, fmt.Sprintf("Append %d entities?", len(clean))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted by user, no files modified.")
				return nil
			}

			writer := commit.NewWriter(cfg.Paths.DataDir, cfg.Paths.BackupDir)
			summary, err := commit.Run(report, writer, commit.Partial)
			printSummary(cmd, summary)
			if summary != nil {
				recordHistory(commitEntry(history.ActionCommitPartial, report, summary))
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDiscardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Remove all staged files; persisted data is untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm(cmd, fmt.Sprintf("Discard all staged files under %s?", cfg.Paths.StagingDir)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted by user.")
				return nil
			}
			m := &admin.Maintenance{StagingDir: cfg.Paths.StagingDir, BackupDir: cfg.Paths.BackupDir}
			removed, err := m.DiscardStaged()
			if err != nil {
				return err
			}
			recordHistory(history.Entry{Action: history.ActionDiscard, Staged: removed})
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d staged file(s).\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newPruneBackupsCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune-backups",
		Short: "Remove old commit backups, keeping the newest per entity file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := &admin.Maintenance{StagingDir: cfg.Paths.StagingDir, BackupDir: cfg.Paths.BackupDir}
			removed, err := m.PruneBackups(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backup(s), kept the newest %d per file.\n", removed, keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "backups to keep per entity file")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := history.NewRecorder(cfg.Paths.HistoryFile).List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-14s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action)
				switch e.Action {
				case history.ActionStage:
					fmt.Fprintf(out, " %d staged, %d errors, %d pass(es)", e.Staged, e.Errors, e.Passes)
				case history.ActionCommit, history.ActionCommitPartial:
					fmt.Fprintf(out, " %d appended (%s)", e.Appended, strings.Join(e.Entities, ", "))
				case history.ActionDiscard:
					fmt.Fprintf(out, " %d staged file(s) removed", e.Staged)
				}
				if e.Note != "" {
					fmt.Fprintf(out, " [%s]", e.Note)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	return cmd
}

// recordHistory appends a run-log entry. History is bookkeeping; a failure
// to write it never fails the command that did the real work.
func recordHistory(e history.Entry) {
	if err := history.NewRecorder(cfg.Paths.HistoryFile).Record(e); err != nil {
		slog.Warn("could not record run history", "error", err)
	}
}

// commitEntry summarizes one commit invocation for the run log.
func commitEntry(action history.Action, report *staging.RunReport, summary *commit.Summary) history.Entry {
	e := history.Entry{
		Action:   action,
		Passes:   report.Passes,
		Errors:   report.TotalErrors(),
		Appended: summary.TotalAppended(),
	}
	for _, res := range summary.Appended {
		if res.Err == nil {
			e.Entities = append(e.Entities, res.Entity)
		}
	}
	if failed := summary.Failed(); len(failed) > 0 {
		e.Note = fmt.Sprintf("append failed for %s", failed[0].Entity)
	}
	return e
}

// loadEngine runs the pre-flight checks and assembles the staging engine.
// Each missing artifact names the command that produces it.
func loadEngine() (*staging.Engine, error) {
	if _, err := os.Stat(cfg.Schema.ArtifactPath); err != nil {
		return nil, fmt.Errorf("schema artifact %s not found: run 'drsimport build-schema' first", cfg.Schema.ArtifactPath)
	}
	art, err := schema.LoadArtifact(cfg.Schema.ArtifactPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Schema.MappingPath); err != nil {
		return nil, fmt.Errorf("mapping config %s not found: create it before staging", cfg.Schema.MappingPath)
	}
	mapCfg, err := mapping.Load(cfg.Schema.MappingPath, cfg.Staging.HeaderRows)
	if err != nil {
		return nil, err
	}

	ruleTable, err := rules.Load(cfg.Schema.RulesPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Paths.WorkbookDir); err != nil {
		return nil, fmt.Errorf("workbook dir %s not found: export the source sheets first", cfg.Paths.WorkbookDir)
	}
	wb := sheet.NewCSVDir(cfg.Paths.WorkbookDir)

	engine := staging.New(art, mapCfg, ruleTable, wb, cfg.Paths.DataDir, cfg.Paths.StagingDir)
	engine.MaxPasses = cfg.Staging.MaxPasses
	return engine, nil
}

// confirm asks the operator for a yes/no gate, defaulting to no.
func confirm(cmd *cobra.Command, prompt string) bool {
	if assumeYes {
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s [y/N]: ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func printReport(cmd *cobra.Command, report *staging.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nStaging finished after %d pass(es)\n", report.Passes)
	for _, entity := range report.Order {
		res := report.Results[entity]
		if res.Note != "" {
			fmt.Fprintf(out, "  %s: %s\n", entity, res.Note)
			continue
		}
		fmt.Fprintf(out, "  %s: %d valid, %d errors\n", entity, res.ValidCount, res.ErrorCount)
	}
	fmt.Fprintf(out, "Total: %d valid rows, %d errors\n", report.TotalValid(), report.TotalErrors())
}

// printErrors shows the first few violations per error-bearing entity.
func printErrors(cmd *cobra.Command, report *staging.RunReport) {
	out := cmd.OutOrStdout()
	for _, res := range report.WithErrors() {
		fmt.Fprintf(out, "\n%s: %d errors\n", res.Entity, res.ErrorCount)
		shown := 0
		for _, rec := range res.Errors {
			if rec.Info {
				continue
			}
			fmt.Fprintf(out, "  row %d: %s\n", rec.RowNum, strings.Join(rec.Errors, "; "))
			if shown++; shown >= 5 {
				if res.ErrorCount > shown {
					fmt.Fprintf(out, "  ... and %d more errors\n", res.ErrorCount-shown)
				}
				break
			}
		}
	}
}

func printSummary(cmd *cobra.Command, summary *commit.Summary) {
	if summary == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, res := range summary.Appended {
		if res.Err != nil {
			fmt.Fprintf(out, "  %s: FAILED (%v), restored from %s\n", res.Entity, res.Err, res.Backup)
			continue
		}
		if res.Backup != "" {
			fmt.Fprintf(out, "  %s: appended %d rows (backup: %s)\n", res.Entity, res.Appended, res.Backup)
		} else {
			fmt.Fprintf(out, "  %s: appended %d rows (new file)\n", res.Entity, res.Appended)
		}
	}
	fmt.Fprintf(out, "Total rows appended: %d\n", summary.TotalAppended())
}
