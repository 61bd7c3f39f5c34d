package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerline/loanbook/internal/model"
)

// CreateReconciliationLink inserts one audit link between a bank entry and
// a ledger record. Offset links carry no record id.
func (s *queries) CreateReconciliationLink(ctx context.Context, link *model.ReconciliationLink) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLink(link); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reconciliation_links (
			id, bank_entry_id, record_id, record_kind,
			link_type, amount, was_created, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, link.ID, link.BankEntryID, nullString(link.RecordID), nullString(string(link.RecordKind)),
		link.Type, link.Amount, link.WasCreated, nullString(link.Notes))
	if err != nil {
		return fmt.Errorf("failed to create reconciliation link: %w", err)
	}
	return nil
}

// GetLinksByBankEntry returns every link recorded for a bank entry.
func (s *queries) GetLinksByBankEntry(ctx context.Context, bankEntryID string) ([]model.ReconciliationLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(bankEntryID, "bankEntryID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, bank_entry_id, record_id, record_kind,
		       link_type, amount, was_created, notes, created_at
		FROM reconciliation_links
		WHERE bank_entry_id = ?
		ORDER BY created_at ASC, id ASC
	`, bankEntryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []model.ReconciliationLink
	for rows.Next() {
		var link model.ReconciliationLink
		var recordID, recordKind, notes sql.NullString
		if err := rows.Scan(
			&link.ID, &link.BankEntryID, &recordID, &recordKind,
			&link.Type, &link.Amount, &link.WasCreated, &notes, &link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation link: %w", err)
		}
		link.RecordID = recordID.String
		link.RecordKind = model.RecordKind(recordKind.String)
		link.Notes = notes.String
		links = append(links, link)
	}
	return links, rows.Err()
}

// GetLinksByRecord returns every link referencing a ledger record, across
// all bank entries. Undo uses this to tell whether sibling entries still
// hold the record.
func (s *queries) GetLinksByRecord(ctx context.Context, recordID string) ([]model.ReconciliationLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, bank_entry_id, record_id, record_kind,
		       link_type, amount, was_created, notes, created_at
		FROM reconciliation_links
		WHERE record_id = ?
		ORDER BY created_at ASC, id ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get links for record: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []model.ReconciliationLink
	for rows.Next() {
		var link model.ReconciliationLink
		var linkRecordID, recordKind, notes sql.NullString
		if err := rows.Scan(
			&link.ID, &link.BankEntryID, &linkRecordID, &recordKind,
			&link.Type, &link.Amount, &link.WasCreated, &notes, &link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation link: %w", err)
		}
		link.RecordID = linkRecordID.String
		link.RecordKind = model.RecordKind(recordKind.String)
		link.Notes = notes.String
		links = append(links, link)
	}
	return links, rows.Err()
}

// DeleteLinksByBankEntry removes all links for a bank entry. Used by undo
// after each link has been individually reversed.
func (s *queries) DeleteLinksByBankEntry(ctx context.Context, bankEntryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bankEntryID, "bankEntryID"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		"DELETE FROM reconciliation_links WHERE bank_entry_id = ?", bankEntryID)
	if err != nil {
		return fmt.Errorf("failed to delete reconciliation links: %w", err)
	}
	return nil
}
