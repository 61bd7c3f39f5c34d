package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/loanbook/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidBankEntry = errors.New("invalid bank entry")
	ErrInvalidRecord    = errors.New("invalid ledger record")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidLink      = errors.New("invalid reconciliation link")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateBankEntries validates a slice of bank entries.
func validateBankEntries(entries []model.BankEntry) error {
	if entries == nil {
		return fmt.Errorf("%w: entries", ErrNilParameter)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: entries", ErrEmptySlice)
	}

	for i, e := range entries {
		if err := validateBankEntry(&e); err != nil {
			return fmt.Errorf("bank entry at index %d: %w", i, err)
		}
	}
	return nil
}

// validateBankEntry validates a single bank entry.
func validateBankEntry(e *model.BankEntry) error {
	if e == nil {
		return fmt.Errorf("%w: bank entry", ErrNilParameter)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidBankEntry)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidBankEntry)
	}
	if e.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidBankEntry)
	}
	return nil
}

// validateLedgerRecord validates a ledger record.
func validateLedgerRecord(rec *model.LedgerRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	if rec.Amount < 0 {
		return fmt.Errorf("%w: amount must be absolute", ErrInvalidRecord)
	}
	switch rec.Kind {
	case model.KindRepayment, model.KindDisbursement, model.KindCapitalIn,
		model.KindCapitalOut, model.KindInterestDebit, model.KindExpense:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
	}
	return nil
}

// validatePattern validates a learned pattern.
func validatePattern(p *model.Pattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if len(p.Fingerprint) == 0 {
		return fmt.Errorf("%w: empty fingerprint", ErrInvalidPattern)
	}
	if p.AmountMax < p.AmountMin {
		return fmt.Errorf("%w: amount band is inverted", ErrInvalidPattern)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidPattern)
	}
	return nil
}

// validateLink validates a reconciliation link.
func validateLink(link *model.ReconciliationLink) error {
	if link == nil {
		return fmt.Errorf("%w: link", ErrNilParameter)
	}
	if link.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidLink)
	}
	if link.BankEntryID == "" {
		return fmt.Errorf("%w: missing bank entry ID", ErrInvalidLink)
	}
	return nil
}
