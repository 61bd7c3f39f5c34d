package reconcile

import (
	"context"
	"fmt"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/service"
)

// ProgressFunc reports incremental bulk progress so a caller can show
// liveness.
type ProgressFunc func(done, total int)

// BulkApply applies a selection sequentially, maintaining its own
// claimed-target set so two selected entries cannot consume the same target
// within one batch even when the suggestion snapshot predates it.
// Recoverable per-item conditions are counted and skipped; the batch carries
// on. Cancellation is honored between items only: an in-flight item always
// completes or fails atomically.
func (o *Orchestrator) BulkApply(ctx context.Context, requests []ApplyRequest, progress ProgressFunc) service.BatchResult {
	var result service.BatchResult
	claimed := make(map[string]bool)
	total := len(requests)

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			for _, rest := range requests[i:] {
				result.Add(service.ItemOutcome{
					BankEntryID: rest.Suggestion.BankEntryID,
					Status:      service.ItemSkipped,
					Reason:      "batch canceled",
				})
			}
			break
		}

		outcome := o.applyOne(ctx, req, claimed)
		result.Add(outcome)

		if progress != nil {
			progress(i+1, total)
		}
	}
	return result
}

func (o *Orchestrator) applyOne(ctx context.Context, req ApplyRequest, claimed map[string]bool) service.ItemOutcome {
	entryID := req.Suggestion.BankEntryID

	if id, taken := batchConflict(&req.Suggestion, claimed); taken {
		return service.ItemOutcome{
			BankEntryID: entryID,
			Status:      service.ItemSkipped,
			Reason:      fmt.Sprintf("target %s already consumed in this batch", id),
		}
	}

	if err := o.Apply(ctx, req); err != nil {
		status := service.ItemFailed
		if common.IsRecoverable(err) {
			status = service.ItemSkipped
		}
		return service.ItemOutcome{
			BankEntryID: entryID,
			Status:      status,
			Reason:      err.Error(),
		}
	}

	claimTargets(&req.Suggestion, claimed)
	return service.ItemOutcome{BankEntryID: entryID, Status: service.ItemApplied}
}

func batchConflict(s *model.MatchSuggestion, claimed map[string]bool) (string, bool) {
	for _, id := range s.TargetIDs() {
		if claimed[id] {
			return id, true
		}
	}
	for _, id := range s.GroupEntries {
		if claimed[id] {
			return id, true
		}
	}
	return "", false
}

func claimTargets(s *model.MatchSuggestion, claimed map[string]bool) {
	for _, id := range s.TargetIDs() {
		claimed[id] = true
	}
	for _, id := range s.GroupEntries {
		claimed[id] = true
	}
	claimed[s.BankEntryID] = true
}
