package suggest

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ledgerline/loanbook/internal/match"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
)

// Builder runs the strategy cascade over every unreconciled bank entry in a
// single deterministic pass, claiming consumed targets so no record is
// suggested twice.
type Builder struct {
	cfg        match.Config
	strategies []Strategy
}

// NewBuilder wires the default strategy cascade.
func NewBuilder(cfg match.Config, patterns *pattern.Store) *Builder {
	grouper := match.NewGrouper(cfg)
	return &Builder{
		cfg: cfg,
		strategies: []Strategy{
			directMatchStrategy{},
			groupedDisbursementStrategy{grouper: grouper},
			groupedRepaymentStrategy{grouper: grouper},
			sharedContactRepaymentStrategy{grouper: grouper},
			investorCrossPoolStrategy{grouper: grouper},
			patternStrategy{store: patterns, floor: cfg.PatternFloor},
			expenseKeywordStrategy{store: patterns, floor: cfg.ExpenseHeuristicFloor},
			nameFallbackStrategy{
				creditFloor: cfg.NameFallbackFloor,
				debitFloor:  cfg.NameFallbackFloorDebit,
			},
		},
	}
}

// Build produces at most one suggestion per unreconciled bank entry.
// Entries are processed by date ascending with stable input order as the
// tie-break, which is also the claim priority: earlier entries get first
// pick of ambiguous targets. Suggestions below the acceptance floor are left
// unset.
func (b *Builder) Build(ctx context.Context, entries []model.BankEntry, pools *Pools) (map[string]model.MatchSuggestion, error) {
	ordered := make([]model.BankEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	pools.Entries = ordered
	claims := NewClaimSet()
	suggestions := make(map[string]model.MatchSuggestion)

	for i := range ordered {
		entry := &ordered[i]
		if entry.IsReconciled || claims.EntryClaimed(entry.ID) {
			continue
		}

		best := b.evaluate(ctx, entry, pools, claims)
		if best == nil || best.Confidence < b.cfg.AcceptanceFloor {
			continue
		}
		if best.Mode == model.ModeCreate && pools.Dismissed[entry.ID] {
			continue
		}

		suggestions[entry.ID] = *best
		claims.ClaimSuggestion(best)
	}

	return suggestions, nil
}

// evaluate walks the cascade in priority order and keeps the highest-scoring
// outcome. Strategy errors are logged and treated as no-match so one broken
// lookup cannot sink the whole pass.
func (b *Builder) evaluate(ctx context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) *model.MatchSuggestion {
	var best *model.MatchSuggestion

	for _, strategy := range b.strategies {
		if best != nil && best.Confidence >= strategy.Threshold(entry) {
			continue
		}

		candidate, err := strategy.TryMatch(ctx, entry, pools, claims)
		if err != nil {
			slog.Warn("Suggestion strategy failed",
				"strategy", strategy.Name(),
				"bank_entry", entry.ID,
				"error", err)
			continue
		}
		if candidate == nil {
			continue
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return best
}
