package main

import (
	"fmt"
	"log/slog"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/match"
	"github.com/ledgerline/loanbook/internal/pattern"
	"github.com/ledgerline/loanbook/internal/reconcile"
	"github.com/ledgerline/loanbook/internal/service"
	"github.com/ledgerline/loanbook/internal/suggest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [bank-entry-id...]",
		Short: "Apply reconciliation suggestions",
		Long: `Apply the current suggestion for one or more bank entries, or every
suggestion above a confidence floor with --all.

Each application is atomic: on any failure the bank entry stays
unreconciled. In bulk mode recoverable conditions (stale targets,
in-batch conflicts) are skipped and the batch carries on.`,
		RunE: runReconcile,
	}

	cmd.Flags().Bool("all", false, "Apply every suggestion at or above --min-confidence")
	cmd.Flags().Float64("min-confidence", 0.75, "Confidence floor for --all")
	cmd.Flags().String("notes", "", "Notes to record on the reconciliation links")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	notes, _ := cmd.Flags().GetString("notes")
	ctx := cmd.Context()

	if !all && len(args) == 0 {
		return fmt.Errorf("provide bank entry ids or --all")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	pools, entries, err := loadPools(ctx, store)
	if err != nil {
		return err
	}

	patterns := pattern.NewStore(store)
	builder := suggest.NewBuilder(match.DefaultConfig(), patterns)
	suggestions, err := builder.Build(ctx, entries, pools)
	if err != nil {
		return fmt.Errorf("failed to build suggestions: %w", err)
	}

	orchestrator := reconcile.New(store, patterns)

	var requests []reconcile.ApplyRequest
	if all {
		for _, entry := range entries {
			s, ok := suggestions[entry.ID]
			if !ok || s.Confidence < minConfidence {
				continue
			}
			// Nobody confirms these individually, so pattern learning
			// uses the smaller reinforcement step.
			requests = append(requests, reconcile.ApplyRequest{Suggestion: s, Notes: notes, Auto: true})
		}
	} else {
		for _, id := range args {
			s, ok := suggestions[id]
			if !ok {
				return common.NewUserError(
					fmt.Sprintf("no suggestion available for bank entry %s; run 'loanbook suggest' to see current suggestions", id),
					nil)
			}
			requests = append(requests, reconcile.ApplyRequest{Suggestion: s, Notes: notes})
		}
	}

	if len(requests) == 0 {
		fmt.Println("Nothing to reconcile.")
		return nil
	}

	bar := progressbar.NewOptions(len(requests),
		progressbar.OptionSetDescription("Reconciling"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	result := orchestrator.BulkApply(ctx, requests, func(done, total int) {
		_ = bar.Set(done)
	})
	_ = bar.Finish()

	printBatchResult(&result)

	if result.Failed > 0 {
		return fmt.Errorf("%d reconciliations failed", result.Failed)
	}
	return nil
}

func printBatchResult(result *service.BatchResult) {
	fmt.Printf("\nReconciled %d, skipped %d, failed %d\n",
		result.Succeeded, result.Skipped, result.Failed)

	for _, outcome := range result.Outcomes {
		if outcome.Status == service.ItemApplied {
			continue
		}
		fmt.Printf("  %-8s %s: %s\n", outcome.Status, outcome.BankEntryID, outcome.Reason)
	}
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [bank-entry-id...]",
		Short: "Undo reconciliations",
		Long: `Reverse the reconciliation of one or more bank entries: created
records are deleted, linked records are released back to their pools,
and loan schedules and investor balances are restored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			orchestrator := reconcile.New(store, pattern.NewStore(store))

			for _, id := range args {
				if err := orchestrator.Undo(ctx, id); err != nil {
					return fmt.Errorf("failed to undo %s: %w", id, err)
				}
				slog.Info("Undid reconciliation", "bank_entry", id)
			}
			return nil
		},
	}
}

func offsetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offset [bank-entry-id...]",
		Short: "Reconcile a zero-net set of bank entries against each other",
		Long: `Mark a set of bank entries whose amounts cancel out (for example a
disbursement that bounced back) as reconciled against each other,
without touching the ledger.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			orchestrator := reconcile.New(store, pattern.NewStore(store))
			if err := orchestrator.Offset(ctx, args, notes); err != nil {
				return fmt.Errorf("failed to offset entries: %w", err)
			}

			slog.Info("Offset complete", "entries", len(args))
			return nil
		},
	}

	cmd.Flags().String("notes", "", "Notes to record on the offset links")

	return cmd
}
