// Package model defines the core data structures for the loanbook application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Direction indicates which way money moved on a bank statement line.
type Direction string

// Direction constants.
const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// BankEntry represents a single imported bank statement line.
// The amount is signed: positive for credits (money in), negative for debits.
// Entries are immutable after import except for the reconciliation flag.
type BankEntry struct {
	Date         time.Time
	ID           string
	Description  string
	Reference    string
	Source       string
	Hash         string
	Amount       float64
	IsReconciled bool
}

// Direction returns the movement direction implied by the signed amount.
func (e *BankEntry) Direction() Direction {
	if e.Amount >= 0 {
		return DirectionCredit
	}
	return DirectionDebit
}

// AbsAmount returns the unsigned amount for tolerance comparisons.
func (e *BankEntry) AbsAmount() float64 {
	if e.Amount < 0 {
		return -e.Amount
	}
	return e.Amount
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (e *BankEntry) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		e.Date.Format("2006-01-02"),
		e.Amount,
		e.Description,
		e.Source)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
