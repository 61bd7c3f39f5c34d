package suggest

import (
	"sort"

	"github.com/ledgerline/loanbook/internal/model"
)

// DetectConflicts finds bank entries whose suggestions reference the same
// underlying ledger record. The result maps each conflicting bank entry id
// to the ids of its conflicting siblings. Advisory only: claims already
// prevent overlap within one pass, so conflicts arise from suggestions
// computed against an older snapshot.
func DetectConflicts(suggestions map[string]model.MatchSuggestion) map[string][]string {
	byTarget := make(map[string][]string)
	for entryID, s := range suggestions {
		switch s.Mode {
		case model.ModeMatch, model.ModeMatchGroup, model.ModeGroupedDisbursement:
			for _, targetID := range s.TargetIDs() {
				byTarget[targetID] = append(byTarget[targetID], entryID)
			}
		case model.ModeCreate:
		}
	}

	conflicts := make(map[string][]string)
	for _, entryIDs := range byTarget {
		if len(entryIDs) < 2 {
			continue
		}
		for _, id := range entryIDs {
			for _, other := range entryIDs {
				if other != id {
					conflicts[id] = append(conflicts[id], other)
				}
			}
		}
	}

	for id := range conflicts {
		conflicts[id] = dedupeSorted(conflicts[id])
	}
	return conflicts
}

// FilterSelection walks a selection in order and drops any entry that
// conflicts with an earlier kept entry, so a batch can never consume the
// same target twice.
func FilterSelection(selection []string, conflicts map[string][]string) []string {
	kept := make([]string, 0, len(selection))
	blocked := make(map[string]bool)

	for _, id := range selection {
		if blocked[id] {
			continue
		}
		kept = append(kept, id)
		for _, sibling := range conflicts[id] {
			blocked[sibling] = true
		}
	}
	return kept
}

func dedupeSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	var prev string
	for i, id := range ids {
		if i == 0 || id != prev {
			out = append(out, id)
		}
		prev = id
	}
	return out
}
