package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
)

// CreatePattern inserts a learned pattern and fills in its assigned id.
func (s *queries) CreatePattern(ctx context.Context, pattern *model.Pattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	split, err := marshalSplit(pattern.Split)
	if err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO patterns (
			fingerprint, amount_min, amount_max, direction,
			target_type, target_ref, confidence, match_count, split_ratios
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pattern.FingerprintKey(), pattern.AmountMin, pattern.AmountMax, pattern.Direction,
		pattern.TargetType, nullString(pattern.TargetRef), pattern.Confidence,
		pattern.MatchCount, split)
	if err != nil {
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pattern id: %w", err)
	}
	pattern.ID = id
	return nil
}

// GetPatterns returns every learned pattern, strongest first.
func (s *queries) GetPatterns(ctx context.Context) ([]model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, fingerprint, amount_min, amount_max, direction,
		       target_type, target_ref, confidence, match_count, split_ratios,
		       created_at, updated_at
		FROM patterns
		ORDER BY confidence DESC, match_count DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.Pattern
	for rows.Next() {
		var p model.Pattern
		var fingerprint string
		var targetRef, split sql.NullString
		if err := rows.Scan(
			&p.ID, &fingerprint, &p.AmountMin, &p.AmountMax, &p.Direction,
			&p.TargetType, &targetRef, &p.Confidence, &p.MatchCount, &split,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Fingerprint = strings.Fields(fingerprint)
		p.TargetRef = targetRef.String
		if split.Valid {
			var ratios model.SplitRatios
			if err := json.Unmarshal([]byte(split.String), &ratios); err != nil {
				return nil, fmt.Errorf("failed to decode split ratios for pattern %d: %w", p.ID, err)
			}
			p.Split = &ratios
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UpdatePattern writes back a pattern's mutable fields after reinforcement.
func (s *queries) UpdatePattern(ctx context.Context, pattern *model.Pattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	split, err := marshalSplit(pattern.Split)
	if err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE patterns
		SET amount_min = ?, amount_max = ?, confidence = ?, match_count = ?,
		    split_ratios = ?, updated_at = ?
		WHERE id = ?
	`, pattern.AmountMin, pattern.AmountMax, pattern.Confidence, pattern.MatchCount,
		split, time.Now().UTC(), pattern.ID)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: pattern %d", common.ErrNotFound, pattern.ID)
	}
	return nil
}

// DismissSuggestion records that a create-type suggestion was rejected for
// this bank entry, so it is not offered again.
func (s *queries) DismissSuggestion(ctx context.Context, bankEntryID, fingerprint string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bankEntryID, "bankEntryID"); err != nil {
		return err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO dismissed_suggestions (bank_entry_id, fingerprint)
		VALUES (?, ?)
	`, bankEntryID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to dismiss suggestion: %w", err)
	}
	return nil
}

// IsSuggestionDismissed reports whether a suggestion was previously
// dismissed for this bank entry.
func (s *queries) IsSuggestionDismissed(ctx context.Context, bankEntryID, fingerprint string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(bankEntryID, "bankEntryID"); err != nil {
		return false, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return false, err
	}

	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dismissed_suggestions
		WHERE bank_entry_id = ? AND fingerprint = ?
	`, bankEntryID, fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check dismissed suggestion: %w", err)
	}
	return count > 0, nil
}

func marshalSplit(split *model.SplitRatios) (sql.NullString, error) {
	if split == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(split)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode split ratios: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
