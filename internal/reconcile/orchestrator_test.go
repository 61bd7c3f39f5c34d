package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
	"github.com/ledgerline/loanbook/internal/service"
	"github.com/ledgerline/loanbook/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, service.Storage) {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	return New(db, pattern.NewStore(db)), db
}

func seedEntry(t *testing.T, db service.Storage, id string, d time.Time, amount float64, desc string) model.BankEntry {
	t.Helper()
	entry := model.BankEntry{ID: id, Date: d, Amount: amount, Description: desc}
	entry.Hash = entry.GenerateHash()
	require.NoError(t, db.SaveBankEntries(context.Background(), []model.BankEntry{entry}))
	return entry
}

func seedRepayment(t *testing.T, db service.Storage, id string, d time.Time, amount float64, loanID string) model.LedgerRecord {
	t.Helper()
	rec := model.LedgerRecord{
		ID: id, Date: d, Amount: amount, Kind: model.KindRepayment,
		Owner:       model.OwnerRef{Type: model.OwnerLoan, ID: loanID},
		Description: "repayment",
	}
	require.NoError(t, db.CreateLedgerRecord(context.Background(), &rec))
	return rec
}

func seedDisbursement(t *testing.T, db service.Storage, id string, d time.Time, amount float64, loanID string) model.LedgerRecord {
	t.Helper()
	rec := model.LedgerRecord{
		ID: id, Date: d, Amount: amount, Kind: model.KindDisbursement,
		Owner:       model.OwnerRef{Type: model.OwnerLoan, ID: loanID},
		Description: "disbursement",
	}
	require.NoError(t, db.CreateLedgerRecord(context.Background(), &rec))
	return rec
}

func matchRequest(entryID string, targets ...model.LedgerRecord) ApplyRequest {
	mode := model.ModeMatch
	if len(targets) > 1 {
		mode = model.ModeMatchGroup
	}
	return ApplyRequest{
		Suggestion: model.MatchSuggestion{
			BankEntryID: entryID,
			Mode:        mode,
			TargetType:  model.KindRepayment,
			Targets:     targets,
			Confidence:  0.95,
		},
	}
}

func TestApplyMatchAndUndo(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 500.00, "ACME LTD")
	rec := seedRepayment(t, db, "rep-1", base, 500.00, "loan-1")

	require.NoError(t, orch.Apply(ctx, matchRequest("be-1", rec)))

	entry, err := db.GetBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.True(t, entry.IsReconciled)

	got, err := db.GetLedgerRecord(ctx, "rep-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsReconciled)

	links, err := db.GetLinksByBankEntry(ctx, "be-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "rep-1", links[0].RecordID)
	assert.False(t, links[0].WasCreated)

	// Applying again is a stale reference, not a double link.
	err = orch.Apply(ctx, matchRequest("be-1", rec))
	assert.ErrorIs(t, err, common.ErrStaleReference)

	// Undo releases both sides and removes the audit links; the linked
	// record itself survives.
	require.NoError(t, orch.Undo(ctx, "be-1"))

	entry, err = db.GetBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.False(t, entry.IsReconciled)

	got, err = db.GetLedgerRecord(ctx, "rep-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsReconciled)

	links, err = db.GetLinksByBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestApplyMatchGroupImbalanceAtomic(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 1000.00, "ACME LTD")
	r1 := seedRepayment(t, db, "rep-1", base, 400.00, "loan-1")
	r2 := seedRepayment(t, db, "rep-2", base, 350.00, "loan-1")

	err := orch.Apply(ctx, matchRequest("be-1", r1, r2))
	assert.ErrorIs(t, err, common.ErrImbalancedGroup)

	// Nothing was flagged.
	entry, err := db.GetBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.False(t, entry.IsReconciled)

	for _, id := range []string{"rep-1", "rep-2"} {
		rec, err := db.GetLedgerRecord(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.False(t, rec.IsReconciled, "record %s", id)
	}
}

func TestApplyGroupedDisbursementPartialUndo(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, -600.00, "SMITH TRANCHE 1")
	seedEntry(t, db, "be-2", base.AddDate(0, 0, 1), -400.00, "SMITH TRANCHE 2")
	disb := seedDisbursement(t, db, "disb-1", base, 1000.00, "loan-1")

	req := ApplyRequest{
		Suggestion: model.MatchSuggestion{
			BankEntryID:  "be-1",
			Mode:         model.ModeGroupedDisbursement,
			TargetType:   model.KindDisbursement,
			Targets:      []model.LedgerRecord{disb},
			GroupEntries: []string{"be-1", "be-2"},
			Confidence:   0.80,
		},
	}
	require.NoError(t, orch.Apply(ctx, req))

	for _, id := range []string{"be-1", "be-2"} {
		entry, err := db.GetBankEntry(ctx, id)
		require.NoError(t, err)
		assert.True(t, entry.IsReconciled, "entry %s", id)

		links, err := db.GetLinksByBankEntry(ctx, id)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "disb-1", links[0].RecordID)
	}

	rec, err := db.GetLedgerRecord(ctx, "disb-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsReconciled)

	// Undoing one tranche releases that entry only; the disbursement stays
	// consumed while the sibling is still linked to it.
	require.NoError(t, orch.Undo(ctx, "be-1"))

	entry, err := db.GetBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.False(t, entry.IsReconciled)

	entry, err = db.GetBankEntry(ctx, "be-2")
	require.NoError(t, err)
	assert.True(t, entry.IsReconciled)

	rec, err = db.GetLedgerRecord(ctx, "disb-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsReconciled)

	// Undoing the last tranche releases the disbursement itself.
	require.NoError(t, orch.Undo(ctx, "be-2"))

	rec, err = db.GetLedgerRecord(ctx, "disb-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.IsReconciled)
}

func TestApplyStaleTarget(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 500.00, "ACME LTD")
	rec := seedRepayment(t, db, "rep-1", base, 500.00, "loan-1")
	require.NoError(t, db.SetLedgerRecordReconciled(ctx, "rep-1", true))

	err := orch.Apply(ctx, matchRequest("be-1", rec))
	assert.ErrorIs(t, err, common.ErrStaleReference)
	assert.True(t, common.IsRecoverable(err))
}

func TestApplyCreateRepaymentRoundTrip(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	require.NoError(t, db.CreateLoan(ctx, &model.Loan{
		ID: "loan-1", BorrowerID: "cp-1", Principal: 300.00, Status: model.LoanActive, StartDate: base,
	}))
	require.NoError(t, db.CreateInstallment(ctx, &model.Installment{
		LoanID: "loan-1", Sequence: 1, DueDate: base,
		PrincipalDue: 100.00, InterestDue: 20.00,
	}))
	require.NoError(t, db.CreateInstallment(ctx, &model.Installment{
		LoanID: "loan-1", Sequence: 2, DueDate: base.AddDate(0, 1, 0),
		PrincipalDue: 100.00, InterestDue: 15.00,
	}))

	seedEntry(t, db, "be-1", base, 235.00, "SMITH LOAN REPAY")

	req := ApplyRequest{
		Suggestion: model.MatchSuggestion{
			BankEntryID: "be-1",
			Mode:        model.ModeCreate,
			TargetType:  model.KindRepayment,
			TargetOwner: model.OwnerRef{Type: model.OwnerLoan, ID: "loan-1", Name: "Smith"},
			Confidence:  0.65,
		},
	}
	require.NoError(t, orch.Apply(ctx, req))

	// The full schedule is settled, so the loan closes.
	loan, err := db.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, model.LoanClosed, loan.Status)

	schedule, err := db.GetSchedule(ctx, "loan-1")
	require.NoError(t, err)
	for _, inst := range schedule {
		assert.True(t, inst.Settled(), "installment %d", inst.Sequence)
	}

	// A created record was linked with wasCreated=true.
	links, err := db.GetLinksByBankEntry(ctx, "be-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].WasCreated)
	recordID := links[0].RecordID

	// A pattern was learned from the confirmation.
	patterns, err := db.GetPatterns(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, patterns)

	// Undo deletes the created record, reopens the loan and restores the
	// schedule to unpaid.
	require.NoError(t, orch.Undo(ctx, "be-1"))

	rec, err := db.GetLedgerRecord(ctx, recordID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	loan, err = db.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, model.LoanActive, loan.Status)

	schedule, err = db.GetSchedule(ctx, "loan-1")
	require.NoError(t, err)
	for _, inst := range schedule {
		assert.Zero(t, inst.PrincipalPaid)
		assert.Zero(t, inst.InterestPaid)
	}

	entry, err := db.GetBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.False(t, entry.IsReconciled)
}

func TestApplyCreateCapitalRoundTrip(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	require.NoError(t, db.CreateInvestor(ctx, &model.Investor{ID: "inv-1", Name: "Smith", CapitalBalance: 1000.00}))
	seedEntry(t, db, "be-1", base, 500.00, "SMITH CAPITAL IN")

	req := ApplyRequest{
		Suggestion: model.MatchSuggestion{
			BankEntryID: "be-1",
			Mode:        model.ModeCreate,
			TargetType:  model.KindCapitalIn,
			TargetOwner: model.OwnerRef{Type: model.OwnerInvestor, ID: "inv-1", Name: "Smith"},
			Confidence:  0.65,
		},
	}
	require.NoError(t, orch.Apply(ctx, req))

	investor, err := db.GetInvestor(ctx, "inv-1")
	require.NoError(t, err)
	assert.InDelta(t, 1500.00, investor.CapitalBalance, 0.001)

	require.NoError(t, orch.Undo(ctx, "be-1"))

	investor, err = db.GetInvestor(ctx, "inv-1")
	require.NoError(t, err)
	assert.InDelta(t, 1000.00, investor.CapitalBalance, 0.001)
}

func TestApplyCreateValidation(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 500.00, "SMITH")

	t.Run("owner required for repayments", func(t *testing.T) {
		err := orch.Apply(ctx, ApplyRequest{
			Suggestion: model.MatchSuggestion{
				BankEntryID: "be-1",
				Mode:        model.ModeCreate,
				TargetType:  model.KindRepayment,
			},
		})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("split ratios must sum to one", func(t *testing.T) {
		err := orch.Apply(ctx, ApplyRequest{
			Suggestion: model.MatchSuggestion{
				BankEntryID: "be-1",
				Mode:        model.ModeCreate,
				TargetType:  model.KindExpense,
			},
			Split: &model.SplitRatios{Principal: 0.5, Interest: 0.2, Fees: 0.2},
		})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestOffset(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-out", base, -750.00, "DISBURSEMENT SMITH")
	seedEntry(t, db, "be-back", base.AddDate(0, 0, 1), 750.00, "RETURNED PAYMENT SMITH")
	seedEntry(t, db, "be-other", base, 100.00, "UNRELATED")

	t.Run("imbalanced set rejected", func(t *testing.T) {
		err := orch.Offset(ctx, []string{"be-out", "be-other"}, "")
		assert.ErrorIs(t, err, common.ErrImbalancedGroup)
	})

	t.Run("zero-net set reconciled and undoable", func(t *testing.T) {
		require.NoError(t, orch.Offset(ctx, []string{"be-out", "be-back"}, "bounced"))

		for _, id := range []string{"be-out", "be-back"} {
			entry, err := db.GetBankEntry(ctx, id)
			require.NoError(t, err)
			assert.True(t, entry.IsReconciled, "entry %s", id)

			links, err := db.GetLinksByBankEntry(ctx, id)
			require.NoError(t, err)
			require.Len(t, links, 1)
			assert.Equal(t, model.LinkTypeOffset, links[0].Type)
			assert.Empty(t, links[0].RecordID)
			assert.Contains(t, links[0].Notes, "offset group ")
			assert.Contains(t, links[0].Notes, "bounced")
		}

		require.NoError(t, orch.Undo(ctx, "be-out"))
		entry, err := db.GetBankEntry(ctx, "be-out")
		require.NoError(t, err)
		assert.False(t, entry.IsReconciled)
	})
}

func TestUndoUnreconciledIsNoOp(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	seedEntry(t, db, "be-1", date(2024, time.August, 1), 500.00, "ACME LTD")
	assert.NoError(t, orch.Undo(ctx, "be-1"))
}

func TestBulkApply(t *testing.T) {
	ctx := context.Background()
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 500.00, "ACME LTD")
	seedEntry(t, db, "be-2", base, 500.00, "ACME LTD AGAIN")
	seedEntry(t, db, "be-3", base, -350.00, "HMRC VAT")
	rec := seedRepayment(t, db, "rep-1", base, 500.00, "loan-1")

	requests := []ApplyRequest{
		matchRequest("be-1", rec),
		// Same target as be-1: must be skipped as an in-batch conflict.
		matchRequest("be-2", rec),
		{
			Suggestion: model.MatchSuggestion{
				BankEntryID: "be-3",
				Mode:        model.ModeCreate,
				TargetType:  model.KindExpense,
				Confidence:  0.65,
			},
		},
	}

	var progressCalls int
	result := orch.BulkApply(ctx, requests, func(done, total int) {
		progressCalls++
		assert.Equal(t, 3, total)
	})

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, progressCalls)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, service.ItemApplied, result.Outcomes[0].Status)
	assert.Equal(t, service.ItemSkipped, result.Outcomes[1].Status)
	assert.Equal(t, service.ItemApplied, result.Outcomes[2].Status)

	entry, err := db.GetBankEntry(ctx, "be-2")
	require.NoError(t, err)
	assert.False(t, entry.IsReconciled)
}

func TestBulkApplyCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	orch, db := newTestOrchestrator(t)

	base := date(2024, time.August, 1)
	seedEntry(t, db, "be-1", base, 500.00, "ACME LTD")
	seedEntry(t, db, "be-2", base, 400.00, "GLOBEX LTD")
	r1 := seedRepayment(t, db, "rep-1", base, 500.00, "loan-1")
	r2 := seedRepayment(t, db, "rep-2", base, 400.00, "loan-2")

	requests := []ApplyRequest{
		matchRequest("be-1", r1),
		matchRequest("be-2", r2),
	}

	// Cancel after the first item completes.
	result := orch.BulkApply(ctx, requests, func(done, total int) {
		if done == 1 {
			cancel()
		}
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "batch canceled", result.Outcomes[1].Reason)
}
