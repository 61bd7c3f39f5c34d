package model

import (
	"time"
)

// LinkTypeOffset marks links written by the funds-returned path, where a
// zero-net set of bank entries is reconciled with no ledger record.
const LinkTypeOffset SuggestionMode = "offset"

// ReconciliationLink is the audit record tying one bank entry to one linked
// or created ledger record. WasCreated marks records whose lifecycle is owned
// by the reconciliation subsystem: they are deleted again on undo, while
// merely-linked records are left untouched.
type ReconciliationLink struct {
	CreatedAt   time.Time
	ID          string
	BankEntryID string
	RecordID    string
	RecordKind  RecordKind
	Type        SuggestionMode
	Notes       string
	Amount      float64
	WasCreated  bool
}
