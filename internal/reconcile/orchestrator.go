// Package reconcile applies and reverses reconciliation decisions: linking
// or creating ledger records, writing audit links, and compensating undo.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/match"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
	"github.com/ledgerline/loanbook/internal/service"
	"github.com/ledgerline/loanbook/internal/waterfall"
)

// OffsetTolerance is the absolute net amount (1 cent) an offset set may
// deviate from zero.
const OffsetTolerance = 0.01

// splitEpsilon is how far user-provided split ratios may drift from 1.
const splitEpsilon = 0.001

// ApplyRequest carries one suggestion plus the user's confirmed details.
type ApplyRequest struct {
	Suggestion model.MatchSuggestion
	// Owner overrides the suggestion's proposed owner for create mode.
	Owner *model.OwnerRef
	// Split is the user-confirmed split for create-mode repayments and
	// capital movements. Ratios must sum to 1.
	Split *model.SplitRatios
	Notes string
	// Auto marks an application nobody confirmed individually, such as a
	// bulk run over a confidence floor. Pattern reinforcement uses the
	// smaller step for these.
	Auto bool
}

// Orchestrator mutates ledger pools on behalf of confirmed suggestions.
// Each application is a single all-or-nothing unit: on error the bank entry
// is never marked reconciled.
type Orchestrator struct {
	storage  service.Storage
	patterns *pattern.Store
}

// New creates an orchestrator.
func New(storage service.Storage, patterns *pattern.Store) *Orchestrator {
	return &Orchestrator{storage: storage, patterns: patterns}
}

// Apply executes one confirmed suggestion.
func (o *Orchestrator) Apply(ctx context.Context, req ApplyRequest) error {
	entry, err := o.storage.GetBankEntry(ctx, req.Suggestion.BankEntryID)
	if err != nil {
		return fmt.Errorf("failed to load bank entry %s: %w", req.Suggestion.BankEntryID, err)
	}
	if entry.IsReconciled {
		return fmt.Errorf("%w: bank entry %s is already reconciled", common.ErrStaleReference, entry.ID)
	}

	switch req.Suggestion.Mode {
	case model.ModeMatch, model.ModeMatchGroup:
		return o.linkExisting(ctx, entry, &req)
	case model.ModeGroupedDisbursement:
		return o.linkGroupedDisbursement(ctx, entry, &req)
	case model.ModeCreate:
		return o.createRecord(ctx, entry, &req)
	}
	return fmt.Errorf("%w: unknown suggestion mode %q", common.ErrValidation, req.Suggestion.Mode)
}

// linkExisting handles match and match_group: one link per target record
// with wasCreated=false, no ledger-side mutation beyond the flags.
func (o *Orchestrator) linkExisting(ctx context.Context, entry *model.BankEntry, req *ApplyRequest) error {
	if len(req.Suggestion.Targets) == 0 {
		return fmt.Errorf("%w: suggestion has no targets", common.ErrValidation)
	}

	tx, err := o.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	defer rollback(tx)

	var sum float64
	fresh := make([]*model.LedgerRecord, 0, len(req.Suggestion.Targets))
	for _, target := range req.Suggestion.Targets {
		rec, err := tx.GetLedgerRecord(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to load record %s: %w", target.ID, err)
		}
		if rec == nil || !rec.Matchable() {
			return fmt.Errorf("%w: record %s", common.ErrStaleReference, target.ID)
		}
		fresh = append(fresh, rec)
		sum += rec.Amount
	}

	if req.Suggestion.Mode == model.ModeMatchGroup {
		if !withinGroupTolerance(sum, entry.AbsAmount()) {
			return fmt.Errorf("%w: targets sum %.2f vs entry %.2f",
				common.ErrImbalancedGroup, sum, entry.AbsAmount())
		}
	}

	for _, rec := range fresh {
		link := newLink(entry.ID, rec, req.Suggestion.Mode, false, req.Notes)
		if err := tx.CreateReconciliationLink(ctx, link); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if err := tx.SetLedgerRecordReconciled(ctx, rec.ID, true); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if err := tx.SetBankEntryReconciled(ctx, entry.ID, true); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	slog.Info("Linked bank entry to existing records",
		"bank_entry", entry.ID,
		"mode", req.Suggestion.Mode,
		"targets", len(fresh))
	return nil
}

// linkGroupedDisbursement consumes several bank entries against one
// disbursement record.
func (o *Orchestrator) linkGroupedDisbursement(ctx context.Context, entry *model.BankEntry, req *ApplyRequest) error {
	if len(req.Suggestion.Targets) != 1 {
		return fmt.Errorf("%w: grouped disbursement needs exactly one target", common.ErrValidation)
	}
	if len(req.Suggestion.GroupEntries) < 2 {
		return fmt.Errorf("%w: grouped disbursement needs at least two bank entries", common.ErrValidation)
	}

	tx, err := o.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	defer rollback(tx)

	disb, err := tx.GetLedgerRecord(ctx, req.Suggestion.Targets[0].ID)
	if err != nil {
		return fmt.Errorf("failed to load disbursement: %w", err)
	}
	if disb == nil || !disb.Matchable() {
		return fmt.Errorf("%w: disbursement %s", common.ErrStaleReference, req.Suggestion.Targets[0].ID)
	}

	var sum float64
	entries := make([]*model.BankEntry, 0, len(req.Suggestion.GroupEntries))
	for _, id := range req.Suggestion.GroupEntries {
		e, err := tx.GetBankEntry(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load bank entry %s: %w", id, err)
		}
		if e.IsReconciled {
			return fmt.Errorf("%w: bank entry %s", common.ErrStaleReference, id)
		}
		entries = append(entries, e)
		sum += e.AbsAmount()
	}

	if !withinGroupTolerance(sum, disb.Amount) {
		return fmt.Errorf("%w: entries sum %.2f vs disbursement %.2f",
			common.ErrImbalancedGroup, sum, disb.Amount)
	}

	for _, e := range entries {
		link := newLink(e.ID, disb, model.ModeGroupedDisbursement, false, req.Notes)
		link.Amount = e.AbsAmount()
		if err := tx.CreateReconciliationLink(ctx, link); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if err := tx.SetBankEntryReconciled(ctx, e.ID, true); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if err := tx.SetLedgerRecordReconciled(ctx, disb.ID, true); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	slog.Info("Linked grouped bank entries to disbursement",
		"disbursement", disb.ID,
		"entries", len(entries))
	return nil
}

// createRecord constructs a new ledger record from the bank entry and the
// user-confirmed type, owner and split, then links it with wasCreated=true.
func (o *Orchestrator) createRecord(ctx context.Context, entry *model.BankEntry, req *ApplyRequest) error {
	owner := req.Suggestion.TargetOwner
	if req.Owner != nil {
		owner = *req.Owner
	}

	kind := req.Suggestion.TargetType
	amount := entry.AbsAmount()

	if req.Split != nil {
		total := req.Split.Principal + req.Split.Interest + req.Split.Fees
		if math.Abs(total-1) > splitEpsilon {
			return fmt.Errorf("%w: split ratios sum to %.4f, want 1", common.ErrValidation, total)
		}
	}
	if ownerRequired(kind) && owner.ID == "" {
		return fmt.Errorf("%w: %s records need an owner", common.ErrValidation, kind)
	}

	tx, err := o.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	defer rollback(tx)

	rec := &model.LedgerRecord{
		ID:           uuid.NewString(),
		Date:         entry.Date,
		Amount:       amount,
		Kind:         kind,
		Owner:        owner,
		Description:  entry.Description,
		IsReconciled: true,
	}
	if err := tx.CreateLedgerRecord(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	if err := o.applySideEffects(ctx, tx, rec); err != nil {
		return err
	}

	link := newLink(entry.ID, rec, model.ModeCreate, true, req.Notes)
	if err := tx.CreateReconciliationLink(ctx, link); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := tx.SetBankEntryReconciled(ctx, entry.ID, true); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	slog.Info("Created ledger record from bank entry",
		"bank_entry", entry.ID,
		"record", rec.ID,
		"kind", kind)

	// Learning failures must not unwind an already committed reconciliation.
	if err := o.patterns.Learn(ctx, entry.Description, amount, entry.Direction(), kind, owner.ID, req.Split, req.Auto); err != nil {
		common.LogError(err, "Failed to update pattern store", common.Fields{
			"bank_entry": entry.ID,
		})
	}
	return nil
}

// applySideEffects updates the owner-level state a newly created record
// implies: the repayment waterfall for loans, running capital balances for
// investors.
func (o *Orchestrator) applySideEffects(ctx context.Context, tx service.Transaction, rec *model.LedgerRecord) error {
	switch rec.Kind {
	case model.KindRepayment:
		return o.applyRepayment(ctx, tx, rec)
	case model.KindCapitalIn:
		if err := tx.AdjustInvestorBalance(ctx, rec.Owner.ID, rec.Amount); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	case model.KindCapitalOut:
		if err := tx.AdjustInvestorBalance(ctx, rec.Owner.ID, -rec.Amount); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	case model.KindDisbursement, model.KindInterestDebit, model.KindExpense:
	}
	return nil
}

func (o *Orchestrator) applyRepayment(ctx context.Context, tx service.Transaction, rec *model.LedgerRecord) error {
	schedule, err := tx.GetSchedule(ctx, rec.Owner.ID)
	if err != nil {
		return fmt.Errorf("failed to load schedule for loan %s: %w", rec.Owner.ID, err)
	}

	result := waterfall.Apply(rec.Amount, schedule)
	for i := range schedule {
		if err := tx.UpdateInstallmentPaid(ctx, &schedule[i]); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if result.FullySettled {
		if err := tx.UpdateLoanStatus(ctx, rec.Owner.ID, model.LoanClosed); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		slog.Info("Loan fully repaid, closing", "loan", rec.Owner.ID)
	}
	return nil
}

// Offset reconciles a zero-net set of bank entries against each other with
// no ledger record created. All entries share a group identifier in the
// link notes.
func (o *Orchestrator) Offset(ctx context.Context, entryIDs []string, notes string) error {
	if len(entryIDs) < 2 {
		return fmt.Errorf("%w: offset needs at least two bank entries", common.ErrValidation)
	}

	tx, err := o.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	defer rollback(tx)

	var net float64
	entries := make([]*model.BankEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		e, err := tx.GetBankEntry(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load bank entry %s: %w", id, err)
		}
		if e.IsReconciled {
			return fmt.Errorf("%w: bank entry %s", common.ErrStaleReference, id)
		}
		entries = append(entries, e)
		net += e.Amount
	}

	if math.Abs(net) > OffsetTolerance {
		return fmt.Errorf("%w: offset set nets to %.2f", common.ErrImbalancedGroup, net)
	}

	groupID := uuid.NewString()
	groupNotes := fmt.Sprintf("offset group %s", groupID)
	if notes != "" {
		groupNotes = fmt.Sprintf("%s: %s", groupNotes, notes)
	}

	for _, e := range entries {
		link := &model.ReconciliationLink{
			ID:          uuid.NewString(),
			BankEntryID: e.ID,
			Type:        model.LinkTypeOffset,
			Amount:      e.Amount,
			Notes:       groupNotes,
			CreatedAt:   time.Now(),
		}
		if err := tx.CreateReconciliationLink(ctx, link); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		if err := tx.SetBankEntryReconciled(ctx, e.ID, true); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}

	slog.Info("Reconciled offset group", "group", groupID, "entries", len(entries))
	return nil
}

func withinGroupTolerance(sum, target float64) bool {
	if target == 0 {
		return sum == 0
	}
	return math.Abs(sum-target) <= math.Abs(target)*match.GroupSumTolerance
}

func ownerRequired(kind model.RecordKind) bool {
	switch kind {
	case model.KindRepayment, model.KindDisbursement,
		model.KindCapitalIn, model.KindCapitalOut, model.KindInterestDebit:
		return true
	case model.KindExpense:
	}
	return false
}

func newLink(bankEntryID string, rec *model.LedgerRecord, mode model.SuggestionMode, wasCreated bool, notes string) *model.ReconciliationLink {
	return &model.ReconciliationLink{
		ID:          uuid.NewString(),
		BankEntryID: bankEntryID,
		RecordID:    rec.ID,
		RecordKind:  rec.Kind,
		Type:        mode,
		Amount:      rec.Amount,
		WasCreated:  wasCreated,
		Notes:       notes,
		CreatedAt:   time.Now(),
	}
}

func rollback(tx service.Transaction) {
	// Rollback after commit is a no-op in the sqlite driver; the error is
	// deliberately ignored.
	_ = tx.Rollback()
}
