package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS bank_entries (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					amount REAL NOT NULL,
					description TEXT NOT NULL,
					reference TEXT,
					source TEXT,
					is_reconciled INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_bank_entries_date ON bank_entries(date)`,
				`CREATE INDEX idx_bank_entries_reconciled ON bank_entries(is_reconciled)`,

				`CREATE TABLE IF NOT EXISTS ledger_records (
					id TEXT PRIMARY KEY,
					date DATETIME NOT NULL,
					amount REAL NOT NULL,
					kind TEXT NOT NULL,
					description TEXT,
					owner_type TEXT NOT NULL DEFAULT 'none',
					owner_id TEXT,
					owner_name TEXT,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					is_reconciled INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ledger_records_kind ON ledger_records(kind)`,
				`CREATE INDEX idx_ledger_records_state ON ledger_records(is_deleted, is_reconciled)`,

				`CREATE TABLE IF NOT EXISTS reconciliation_links (
					id TEXT PRIMARY KEY,
					bank_entry_id TEXT NOT NULL,
					record_id TEXT,
					record_kind TEXT,
					link_type TEXT NOT NULL,
					amount REAL NOT NULL,
					was_created INTEGER NOT NULL DEFAULT 0,
					notes TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (bank_entry_id) REFERENCES bank_entries(id)
				)`,
				`CREATE INDEX idx_links_bank_entry ON reconciliation_links(bank_entry_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Loan, investor and counterparty master records",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS loans (
					id TEXT PRIMARY KEY,
					borrower_id TEXT NOT NULL,
					borrower_name TEXT,
					principal REAL NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					start_date DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS loan_schedule (
					loan_id TEXT NOT NULL,
					sequence INTEGER NOT NULL,
					due_date DATETIME NOT NULL,
					principal_due REAL NOT NULL DEFAULT 0,
					interest_due REAL NOT NULL DEFAULT 0,
					fees_due REAL NOT NULL DEFAULT 0,
					principal_paid REAL NOT NULL DEFAULT 0,
					interest_paid REAL NOT NULL DEFAULT 0,
					fees_paid REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (loan_id, sequence),
					FOREIGN KEY (loan_id) REFERENCES loans(id)
				)`,

				`CREATE TABLE IF NOT EXISTS investors (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					email TEXT,
					capital_balance REAL NOT NULL DEFAULT 0
				)`,

				`CREATE TABLE IF NOT EXISTS counterparties (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					legal_name TEXT,
					email TEXT,
					owner_type TEXT NOT NULL,
					owner_id TEXT NOT NULL
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Learned patterns and dismissed suggestions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					fingerprint TEXT NOT NULL,
					amount_min REAL NOT NULL,
					amount_max REAL NOT NULL,
					direction TEXT NOT NULL,
					target_type TEXT NOT NULL,
					target_ref TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					match_count INTEGER NOT NULL DEFAULT 0,
					split_ratios TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_patterns_direction ON patterns(direction, target_type)`,

				`CREATE TABLE IF NOT EXISTS dismissed_suggestions (
					bank_entry_id TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					dismissed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (bank_entry_id, fingerprint)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
