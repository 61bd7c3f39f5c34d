package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/ofx"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank entries from OFX/QFX statement files",
		Long: `Import bank statement lines from OFX or QFX files exported from your bank.

Duplicate lines are detected by content hash and skipped, so re-importing
an overlapping statement is safe.

Examples:
  # Import single file
  loanbook import ~/Downloads/statement_jan.ofx

  # Import all statements in a directory
  loanbook import ~/Downloads/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("Importing statement files",
		"file_count", len(allFiles),
		"dry_run", dryRun)

	var allEntries []model.BankEntry
	seen := make(map[string]bool) // in-batch deduplication by hash

	parser := ofx.NewParser()

	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			continue
		}

		entries, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
			continue
		}

		added := 0
		for _, e := range entries {
			if !seen[e.Hash] {
				seen[e.Hash] = true
				allEntries = append(allEntries, e)
				added++
			}
		}

		slog.Info("Processed file",
			"file", filepath.Base(filePath),
			"entries_found", len(entries),
			"added", added,
			"duplicates", len(entries)-added)
	}

	if len(allEntries) == 0 {
		slog.Warn("No bank entries found in any file")
		return nil
	}

	if dryRun {
		slog.Info("Dry run complete - no data saved", "entries", len(allEntries))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// SQLite can report busy under concurrent CLI invocations; retry briefly.
	err = common.WithRetry(ctx, func() error {
		return store.SaveBankEntries(ctx, allEntries)
	}, common.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return fmt.Errorf("failed to save bank entries: %w", err)
	}

	common.LogInfo("Import complete", common.Fields{"entries": len(allEntries)})
	return nil
}
