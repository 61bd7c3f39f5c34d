package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ledgerline/loanbook/internal/match"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
	"github.com/ledgerline/loanbook/internal/suggest"
	"github.com/spf13/cobra"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Build reconciliation suggestions for unreconciled bank entries",
		Long: `Run the matching engine over every unreconciled bank entry and print
at most one suggestion per entry, with confidence and explanation.

Suggestions are recomputed from scratch on every run; nothing is
persisted until you reconcile.`,
		RunE: runSuggest,
	}

	cmd.Flags().Float64("min-confidence", 0, "Only show suggestions at or above this confidence")
	cmd.Flags().Bool("conflicts", false, "Show conflicting suggestions that share targets")

	return cmd
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	showConflicts, _ := cmd.Flags().GetBool("conflicts")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	pools, entries, err := loadPools(ctx, store)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No unreconciled bank entries.")
		return nil
	}

	builder := suggest.NewBuilder(match.DefaultConfig(), pattern.NewStore(store))
	suggestions, err := builder.Build(ctx, entries, pools)
	if err != nil {
		return fmt.Errorf("failed to build suggestions: %w", err)
	}

	printSuggestions(entries, suggestions, minConfidence)

	if showConflicts {
		printConflicts(suggestions)
	}

	return nil
}

func dismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [bank-entry-id...]",
		Short: "Dismiss create-type suggestions for bank entries",
		Long: `Record that the create-type suggestion for each bank entry was
rejected, so later passes stop offering it. Match-type suggestions are
unaffected; they disappear on their own once the records reconcile.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			for _, id := range args {
				entry, err := store.GetBankEntry(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to load bank entry %s: %w", id, err)
				}
				key := pattern.Key(entry.Description)
				if key == "" {
					slog.Warn("Description has no usable fingerprint, nothing to dismiss",
						"bank_entry", id)
					continue
				}
				if err := store.DismissSuggestion(ctx, id, key); err != nil {
					return fmt.Errorf("failed to dismiss suggestion for %s: %w", id, err)
				}
				slog.Info("Dismissed suggestion", "bank_entry", id)
			}
			return nil
		},
	}
}

func printSuggestions(entries []model.BankEntry, suggestions map[string]model.MatchSuggestion, minConfidence float64) {
	shown := 0
	for _, entry := range entries {
		s, ok := suggestions[entry.ID]
		if !ok || s.Confidence < minConfidence {
			continue
		}
		shown++

		fmt.Printf("\n%s  %s  %.2f  %s\n",
			entry.Date.Format("2006-01-02"), entry.ID, entry.Amount, entry.Description)
		fmt.Printf("  -> %s (%.0f%%)\n", describeSuggestion(&s), s.Confidence*100)
		fmt.Printf("     amount: %s [%s]\n", s.Explanation.Amount.Text, s.Explanation.Amount.Severity)
		fmt.Printf("     date:   %s [%s]\n", s.Explanation.Date.Text, s.Explanation.Date.Severity)
	}

	fmt.Printf("\n%d suggestions for %d unreconciled entries\n", shown, len(entries))
}

func describeSuggestion(s *model.MatchSuggestion) string {
	switch s.Mode {
	case model.ModeMatch:
		return fmt.Sprintf("match %s %s", s.TargetType, s.Targets[0].ID)
	case model.ModeMatchGroup:
		return fmt.Sprintf("match group of %d %s records", len(s.Targets), s.TargetType)
	case model.ModeGroupedDisbursement:
		return fmt.Sprintf("group %d bank entries against disbursement %s",
			len(s.GroupEntries), s.Targets[0].ID)
	case model.ModeCreate:
		owner := s.TargetOwner.Name
		if owner == "" {
			owner = string(s.TargetOwner.Type)
		}
		return fmt.Sprintf("create %s for %s", s.TargetType, owner)
	}
	return string(s.Mode)
}

func printConflicts(suggestions map[string]model.MatchSuggestion) {
	conflicts := suggest.DetectConflicts(suggestions)
	if len(conflicts) == 0 {
		fmt.Println("\nNo conflicting suggestions.")
		return
	}

	ids := make([]string, 0, len(conflicts))
	for id := range conflicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("\nConflicting suggestions (shared targets):")
	for _, id := range ids {
		fmt.Printf("  %s conflicts with %v\n", id, conflicts[id])
	}
}
