// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/ledgerline/loanbook/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Bank entry operations
	SaveBankEntries(ctx context.Context, entries []model.BankEntry) error
	GetBankEntry(ctx context.Context, id string) (*model.BankEntry, error)
	GetUnreconciledBankEntries(ctx context.Context) ([]model.BankEntry, error)
	SetBankEntryReconciled(ctx context.Context, id string, reconciled bool) error

	// Ledger record operations
	CreateLedgerRecord(ctx context.Context, rec *model.LedgerRecord) error
	GetLedgerRecord(ctx context.Context, id string) (*model.LedgerRecord, error)
	GetUnreconciledLedgerRecords(ctx context.Context, kind model.RecordKind) ([]model.LedgerRecord, error)
	SetLedgerRecordReconciled(ctx context.Context, id string, reconciled bool) error
	DeleteLedgerRecord(ctx context.Context, id string) error

	// Counterparty operations
	CreateCounterparty(ctx context.Context, c *model.Counterparty) error
	GetCounterparties(ctx context.Context) ([]model.Counterparty, error)

	// Loan operations
	CreateLoan(ctx context.Context, loan *model.Loan) error
	GetLoan(ctx context.Context, id string) (*model.Loan, error)
	UpdateLoanStatus(ctx context.Context, id string, status model.LoanStatus) error
	CreateInstallment(ctx context.Context, inst *model.Installment) error
	GetSchedule(ctx context.Context, loanID string) ([]model.Installment, error)
	UpdateInstallmentPaid(ctx context.Context, inst *model.Installment) error

	// Investor operations
	CreateInvestor(ctx context.Context, investor *model.Investor) error
	GetInvestor(ctx context.Context, id string) (*model.Investor, error)
	AdjustInvestorBalance(ctx context.Context, id string, delta float64) error

	// Pattern operations
	CreatePattern(ctx context.Context, pattern *model.Pattern) error
	GetPatterns(ctx context.Context) ([]model.Pattern, error)
	UpdatePattern(ctx context.Context, pattern *model.Pattern) error

	// Reconciliation link operations
	CreateReconciliationLink(ctx context.Context, link *model.ReconciliationLink) error
	GetLinksByBankEntry(ctx context.Context, bankEntryID string) ([]model.ReconciliationLink, error)
	GetLinksByRecord(ctx context.Context, recordID string) ([]model.ReconciliationLink, error)
	DeleteLinksByBankEntry(ctx context.Context, bankEntryID string) error

	// Dismissed suggestion operations
	DismissSuggestion(ctx context.Context, bankEntryID, fingerprint string) error
	IsSuggestionDismissed(ctx context.Context, bankEntryID, fingerprint string) (bool, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ItemStatus is the outcome of one item of a bulk operation.
type ItemStatus string

// Item statuses.
const (
	ItemApplied ItemStatus = "applied"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// ItemOutcome records what happened to one bank entry in a bulk operation.
type ItemOutcome struct {
	BankEntryID string
	Status      ItemStatus
	Reason      string
}

// BatchResult summarizes a bulk operation. Every bulk operation ends with an
// explicit summary rather than a bare success boolean.
type BatchResult struct {
	Outcomes  []ItemOutcome
	Succeeded int
	Failed    int
	Skipped   int
}

// Add records one outcome and bumps the matching counter.
func (r *BatchResult) Add(outcome ItemOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	switch outcome.Status {
	case ItemApplied:
		r.Succeeded++
	case ItemSkipped:
		r.Skipped++
	case ItemFailed:
		r.Failed++
	}
}
