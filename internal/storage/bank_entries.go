package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
)

// SaveBankEntries inserts imported bank entries, skipping duplicates by
// hash.
func (s *queries) SaveBankEntries(ctx context.Context, entries []model.BankEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBankEntries(entries); err != nil {
		return err
	}

	query := `
		INSERT OR IGNORE INTO bank_entries (
			id, hash, date, amount, description, reference, source, is_reconciled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, e := range entries {
		if e.Hash == "" {
			e.Hash = e.GenerateHash()
		}
		_, err := s.q.ExecContext(ctx, query,
			e.ID, e.Hash, e.Date, e.Amount, e.Description,
			e.Reference, e.Source, e.IsReconciled,
		)
		if err != nil {
			return fmt.Errorf("failed to save bank entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// GetBankEntry retrieves one bank entry by id.
func (s *queries) GetBankEntry(ctx context.Context, id string) (*model.BankEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, hash, date, amount, description, reference, source, is_reconciled
		FROM bank_entries
		WHERE id = ?
	`

	var e model.BankEntry
	var reference, source sql.NullString
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Hash, &e.Date, &e.Amount, &e.Description,
		&reference, &source, &e.IsReconciled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: bank entry %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bank entry: %w", err)
	}
	e.Reference = reference.String
	e.Source = source.String

	return &e, nil
}

// GetUnreconciledBankEntries returns all unreconciled entries ordered by
// date then id, the deterministic order suggestion building relies on.
func (s *queries) GetUnreconciledBankEntries(ctx context.Context) ([]model.BankEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, hash, date, amount, description, reference, source, is_reconciled
		FROM bank_entries
		WHERE is_reconciled = 0
		ORDER BY date ASC, id ASC
	`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get unreconciled bank entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BankEntry
	for rows.Next() {
		var e model.BankEntry
		var reference, source sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Hash, &e.Date, &e.Amount, &e.Description,
			&reference, &source, &e.IsReconciled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bank entry: %w", err)
		}
		e.Reference = reference.String
		e.Source = source.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetBankEntryReconciled flips the reconciliation flag.
func (s *queries) SetBankEntryReconciled(ctx context.Context, id string, reconciled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		"UPDATE bank_entries SET is_reconciled = ? WHERE id = ?",
		reconciled, id)
	if err != nil {
		return fmt.Errorf("failed to update bank entry %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: bank entry %s", common.ErrNotFound, id)
	}
	return nil
}
