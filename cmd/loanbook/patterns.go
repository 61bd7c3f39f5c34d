package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage learned description patterns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List learned patterns, strongest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			patterns, err := store.GetPatterns(ctx)
			if err != nil {
				return fmt.Errorf("failed to load patterns: %w", err)
			}

			if len(patterns) == 0 {
				fmt.Println("No learned patterns yet.")
				return nil
			}

			fmt.Printf("%-6s %-12s %-14s %-18s %5s %6s  %s\n",
				"ID", "DIRECTION", "TARGET", "AMOUNT BAND", "USES", "CONF", "FINGERPRINT")
			for _, p := range patterns {
				target := string(p.TargetType)
				if p.TargetRef != "" {
					target = fmt.Sprintf("%s/%s", p.TargetType, p.TargetRef)
				}
				fmt.Printf("%-6d %-12s %-14s %8.2f-%-8.2f %5d %5.0f%%  %s\n",
					p.ID, p.Direction, target,
					p.AmountMin, p.AmountMax,
					p.MatchCount, p.Confidence*100,
					p.FingerprintKey())
			}
			return nil
		},
	})

	return cmd
}
