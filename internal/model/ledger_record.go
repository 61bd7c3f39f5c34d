package model

import (
	"time"
)

// RecordKind identifies which ledger pool a record belongs to.
type RecordKind string

// Ledger record kinds.
const (
	KindRepayment     RecordKind = "repayment"
	KindDisbursement  RecordKind = "disbursement"
	KindCapitalIn     RecordKind = "capital_in"
	KindCapitalOut    RecordKind = "capital_out"
	KindInterestDebit RecordKind = "interest_debit"
	KindExpense       RecordKind = "expense"
)

// Direction returns the bank-side direction a record of this kind should
// reconcile against: a loan repayment arrives as a credit, a disbursement
// leaves as a debit, and so on.
func (k RecordKind) Direction() Direction {
	switch k {
	case KindRepayment, KindCapitalIn:
		return DirectionCredit
	case KindDisbursement, KindCapitalOut, KindInterestDebit, KindExpense:
		return DirectionDebit
	}
	return DirectionDebit
}

// OwnerType identifies the kind of entity a ledger record belongs to.
type OwnerType string

// Owner types.
const (
	OwnerLoan     OwnerType = "loan"
	OwnerInvestor OwnerType = "investor"
	OwnerNone     OwnerType = "none"
)

// OwnerRef resolves a ledger record to its owning entity.
type OwnerRef struct {
	Type OwnerType
	ID   string
	Name string
}

// LedgerRecord is the common shape shared by all four ledger pools for
// matching purposes. Amount is stored as an absolute value; direction is
// derived from Kind.
type LedgerRecord struct {
	Date         time.Time
	ID           string
	Kind         RecordKind
	Description  string
	Owner        OwnerRef
	Amount       float64
	IsDeleted    bool
	IsReconciled bool
}

// Matchable reports whether the record may still be offered as a
// reconciliation target.
func (r *LedgerRecord) Matchable() bool {
	return !r.IsDeleted && !r.IsReconciled
}
