package reconcile

import (
	"context"
	"fmt"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/waterfall"
)

// Undo reverses a bank entry's reconciliation. Records the subsystem created
// (wasCreated=true links) are deleted and their side effects reversed;
// records that were merely linked get their reconciled flag cleared and are
// otherwise left alone. Undo on an unreconciled entry is a no-op.
//
// Failures are logged per record and the undo continues, so a partial
// earlier failure never wedges the entry permanently.
func (o *Orchestrator) Undo(ctx context.Context, bankEntryID string) error {
	entry, err := o.storage.GetBankEntry(ctx, bankEntryID)
	if err != nil {
		return fmt.Errorf("failed to load bank entry %s: %w", bankEntryID, err)
	}
	if !entry.IsReconciled {
		return nil
	}

	links, err := o.storage.GetLinksByBankEntry(ctx, bankEntryID)
	if err != nil {
		return fmt.Errorf("failed to load links for %s: %w", bankEntryID, err)
	}

	for _, link := range links {
		if err := o.undoLink(ctx, &link); err != nil {
			common.LogError(err, "Failed to undo link, continuing", common.Fields{
				"bank_entry": bankEntryID,
				"link":       link.ID,
				"record":     link.RecordID,
			})
		}
	}

	if err := o.storage.DeleteLinksByBankEntry(ctx, bankEntryID); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := o.storage.SetBankEntryReconciled(ctx, bankEntryID, false); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

func (o *Orchestrator) undoLink(ctx context.Context, link *model.ReconciliationLink) error {
	if link.RecordID == "" {
		// Offset links carry no ledger record.
		return nil
	}

	if !link.WasCreated {
		siblings, err := o.storage.GetLinksByRecord(ctx, link.RecordID)
		if err != nil {
			return fmt.Errorf("failed to load links for record %s: %w", link.RecordID, err)
		}
		for _, other := range siblings {
			// A grouped disbursement links several bank entries to one
			// record; it stays consumed until the last of them is undone.
			if other.BankEntryID != link.BankEntryID {
				return nil
			}
		}
		return o.storage.SetLedgerRecordReconciled(ctx, link.RecordID, false)
	}

	rec, err := o.storage.GetLedgerRecord(ctx, link.RecordID)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}
	if rec == nil || rec.IsDeleted {
		// Already gone; nothing left to compensate.
		return nil
	}

	if err := o.reverseSideEffects(ctx, rec); err != nil {
		return err
	}
	return o.storage.DeleteLedgerRecord(ctx, rec.ID)
}

// reverseSideEffects undoes the owner-level changes a created record caused.
func (o *Orchestrator) reverseSideEffects(ctx context.Context, rec *model.LedgerRecord) error {
	switch rec.Kind {
	case model.KindRepayment:
		schedule, err := o.storage.GetSchedule(ctx, rec.Owner.ID)
		if err != nil {
			return fmt.Errorf("failed to load schedule: %w", err)
		}
		waterfall.Reverse(rec.Amount, schedule)
		for i := range schedule {
			if err := o.storage.UpdateInstallmentPaid(ctx, &schedule[i]); err != nil {
				return fmt.Errorf("%w: %v", common.ErrPersistence, err)
			}
		}
		if err := o.storage.UpdateLoanStatus(ctx, rec.Owner.ID, model.LoanActive); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	case model.KindCapitalIn:
		return o.storage.AdjustInvestorBalance(ctx, rec.Owner.ID, -rec.Amount)
	case model.KindCapitalOut:
		return o.storage.AdjustInvestorBalance(ctx, rec.Owner.ID, rec.Amount)
	case model.KindDisbursement, model.KindInterestDebit, model.KindExpense:
	}
	return nil
}
