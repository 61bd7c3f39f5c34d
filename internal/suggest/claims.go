// Package suggest orchestrates scoring, grouping and pattern lookup across
// all ledger pools to produce one best reconciliation suggestion per
// unreconciled bank entry.
package suggest

import (
	"github.com/ledgerline/loanbook/internal/model"
)

// ClaimSet tracks ledger records and bank entries already consumed by
// earlier suggestions within one building pass, so no id is ever referenced
// by two suggestions. Its lifetime is exactly one pass.
type ClaimSet struct {
	records map[string]bool
	entries map[string]bool
}

// NewClaimSet creates an empty claim set.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{
		records: make(map[string]bool),
		entries: make(map[string]bool),
	}
}

// RecordClaimed reports whether a ledger record is already consumed.
func (c *ClaimSet) RecordClaimed(id string) bool {
	return c.records[id]
}

// EntryClaimed reports whether a bank entry is already consumed.
func (c *ClaimSet) EntryClaimed(id string) bool {
	return c.entries[id]
}

// ClaimRecord marks a ledger record as consumed.
func (c *ClaimSet) ClaimRecord(id string) {
	c.records[id] = true
}

// ClaimEntry marks a bank entry as consumed.
func (c *ClaimSet) ClaimEntry(id string) {
	c.entries[id] = true
}

// ClaimSuggestion claims every target record of a suggestion and, for
// grouped disbursements, every consumed bank entry.
func (c *ClaimSet) ClaimSuggestion(s *model.MatchSuggestion) {
	for _, id := range s.TargetIDs() {
		c.ClaimRecord(id)
	}
	for _, id := range s.GroupEntries {
		c.ClaimEntry(id)
	}
}
