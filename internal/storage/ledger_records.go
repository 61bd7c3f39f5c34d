package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
)

// CreateLedgerRecord inserts a new ledger record.
func (s *queries) CreateLedgerRecord(ctx context.Context, rec *model.LedgerRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_records (
			id, date, amount, kind, description,
			owner_type, owner_id, owner_name, is_deleted, is_reconciled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ownerType := rec.Owner.Type
	if ownerType == "" {
		ownerType = model.OwnerNone
	}

	_, err := s.q.ExecContext(ctx, query,
		rec.ID, rec.Date, rec.Amount, rec.Kind, rec.Description,
		ownerType, nullString(rec.Owner.ID), nullString(rec.Owner.Name),
		rec.IsDeleted, rec.IsReconciled,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger record: %w", err)
	}
	return nil
}

// GetLedgerRecord retrieves one ledger record by id. A missing record
// returns (nil, nil) so callers can distinguish stale references from
// storage failures.
func (s *queries) GetLedgerRecord(ctx context.Context, id string) (*model.LedgerRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, date, amount, kind, description,
		       owner_type, owner_id, owner_name, is_deleted, is_reconciled
		FROM ledger_records
		WHERE id = ?
	`

	rec, err := scanLedgerRecord(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger record: %w", err)
	}
	return rec, nil
}

// GetUnreconciledLedgerRecords returns all matchable records of one kind
// ordered by date then id.
func (s *queries) GetUnreconciledLedgerRecords(ctx context.Context, kind model.RecordKind) ([]model.LedgerRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(string(kind), "kind"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, date, amount, kind, description,
		       owner_type, owner_id, owner_name, is_deleted, is_reconciled
		FROM ledger_records
		WHERE kind = ? AND is_deleted = 0 AND is_reconciled = 0
		ORDER BY date ASC, id ASC
	`

	rows, err := s.q.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get unreconciled ledger records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.LedgerRecord
	for rows.Next() {
		rec, scanErr := scanLedgerRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", scanErr)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SetLedgerRecordReconciled flips the reconciliation flag.
func (s *queries) SetLedgerRecordReconciled(ctx context.Context, id string, reconciled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		"UPDATE ledger_records SET is_reconciled = ? WHERE id = ?",
		reconciled, id)
	if err != nil {
		return fmt.Errorf("failed to update ledger record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: ledger record %s", common.ErrNotFound, id)
	}
	return nil
}

// DeleteLedgerRecord removes a ledger record. Only records that the
// reconciliation subsystem itself created should ever be deleted.
func (s *queries) DeleteLedgerRecord(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, "DELETE FROM ledger_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete ledger record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: ledger record %s", common.ErrNotFound, id)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerRecord(row rowScanner) (*model.LedgerRecord, error) {
	var rec model.LedgerRecord
	var description, ownerID, ownerName sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Date, &rec.Amount, &rec.Kind, &description,
		&rec.Owner.Type, &ownerID, &ownerName, &rec.IsDeleted, &rec.IsReconciled,
	)
	if err != nil {
		return nil, err
	}
	rec.Description = description.String
	rec.Owner.ID = ownerID.String
	rec.Owner.Name = ownerName.String
	return &rec, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
