package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/service"
	"github.com/ledgerline/loanbook/internal/storage"
	"github.com/ledgerline/loanbook/internal/suggest"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings its schema up to
// date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "loanbook", "loanbook.db")
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// expandPath expands a leading tilde and any environment variables.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// loadPools builds the matching snapshot all suggestion passes run over.
func loadPools(ctx context.Context, store service.Storage) (*suggest.Pools, []model.BankEntry, error) {
	entries, err := store.GetUnreconciledBankEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bank entries: %w", err)
	}

	pools := &suggest.Pools{}
	pools.Dismissed, err = suggest.LoadDismissed(ctx, store, entries)
	if err != nil {
		return nil, nil, err
	}

	kinds := map[model.RecordKind]*[]model.LedgerRecord{
		model.KindRepayment:     &pools.Repayments,
		model.KindDisbursement:  &pools.Disbursements,
		model.KindCapitalIn:     &pools.CapitalMovements,
		model.KindCapitalOut:    &pools.CapitalMovements,
		model.KindInterestDebit: &pools.InterestEntries,
		model.KindExpense:       &pools.Expenses,
	}
	for kind, dest := range kinds {
		records, err := store.GetUnreconciledLedgerRecords(ctx, kind)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load %s records: %w", kind, err)
		}
		*dest = append(*dest, records...)
	}

	pools.Counterparties, err = store.GetCounterparties(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load counterparties: %w", err)
	}

	return pools, entries, nil
}
