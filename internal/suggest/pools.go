package suggest

import (
	"context"
	"fmt"

	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
	"github.com/ledgerline/loanbook/internal/service"
)

// Pools is the immutable snapshot of unreconciled state a building pass runs
// over. Rebuilding from a fresh snapshot yields identical suggestions.
type Pools struct {
	// Entries holds all unreconciled bank entries, needed by the grouped
	// disbursement search.
	Entries          []model.BankEntry
	Repayments       []model.LedgerRecord
	Disbursements    []model.LedgerRecord
	CapitalMovements []model.LedgerRecord
	InterestEntries  []model.LedgerRecord
	Expenses         []model.LedgerRecord
	Counterparties   []model.Counterparty
	// Dismissed marks bank entries whose create-type suggestions the user
	// has dismissed. Loaded at the process boundary, never mutated here.
	Dismissed map[string]bool
}

// recordPools returns the ledger pools in fixed evaluation order.
func (p *Pools) recordPools() [][]model.LedgerRecord {
	return [][]model.LedgerRecord{
		p.Repayments,
		p.Disbursements,
		p.CapitalMovements,
		p.InterestEntries,
		p.Expenses,
	}
}

// MatchableForDirection returns every live, unreconciled record across all
// pools whose kind reconciles against the given bank direction.
func (p *Pools) MatchableForDirection(dir model.Direction) []model.LedgerRecord {
	var out []model.LedgerRecord
	for _, pool := range p.recordPools() {
		for _, rec := range pool {
			if !rec.Matchable() {
				continue
			}
			if rec.Kind.Direction() != dir {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

// CounterpartName resolves an owner reference to a display name for name
// matching, preferring the counterparty's legal name.
func (p *Pools) CounterpartName(owner model.OwnerRef) string {
	for i := range p.Counterparties {
		c := &p.Counterparties[i]
		if c.OwnerType == owner.Type && c.OwnerID == owner.ID {
			return c.DisplayName()
		}
	}
	return owner.Name
}

// LoadDismissed builds the dismissed map for a set of entries from persisted
// dismissals, keyed by the description fingerprint each dismissal was stored
// under. Entries whose descriptions fingerprint to nothing are never
// dismissed.
func LoadDismissed(ctx context.Context, store service.Storage, entries []model.BankEntry) (map[string]bool, error) {
	dismissed := make(map[string]bool)
	for i := range entries {
		key := pattern.Key(entries[i].Description)
		if key == "" {
			continue
		}
		ok, err := store.IsSuggestionDismissed(ctx, entries[i].ID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check dismissed suggestion for %s: %w", entries[i].ID, err)
		}
		if ok {
			dismissed[entries[i].ID] = true
		}
	}
	return dismissed, nil
}

// CounterpartEmail resolves an owner reference to its contact email, or ""
// when no counterparty is known.
func (p *Pools) CounterpartEmail(owner model.OwnerRef) string {
	for i := range p.Counterparties {
		c := &p.Counterparties[i]
		if c.OwnerType == owner.Type && c.OwnerID == owner.ID {
			return c.Email
		}
	}
	return ""
}
