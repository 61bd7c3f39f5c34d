package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/service"
)

// Store tuning constants, preserved as tuned values.
const (
	// PrimaryFloor is the minimum keyword score for a pattern to back a
	// primary suggestion.
	PrimaryFloor = 0.5
	// SecondaryFloor is the lower bar used for secondary expense-type
	// suggestions.
	SecondaryFloor = 0.3
	// ReinforceStep is the confidence bump on a human-confirmed use.
	ReinforceStep = 0.1
	// AutoReinforceStep is the smaller bump used on the auto-reconcile path.
	AutoReinforceStep = 0.05
	// UsageBoostCap and UsageBoostDivisor shape the usage-frequency boost
	// min(matchCount/20, 0.15) folded into ranking scores.
	UsageBoostCap     = 0.15
	UsageBoostDivisor = 20.0
	// AmountBand is the tolerance band stored around an observed amount when
	// a new pattern is created.
	AmountBand = 0.20
	// initialConfidence is the confidence of a freshly learned pattern.
	initialConfidence = 0.6
	// rankCap keeps pattern-backed suggestions below clean direct matches.
	rankCap = 0.90
)

// Match is one pattern lookup result.
type Match struct {
	Pattern      model.Pattern
	KeywordScore float64
	// Score is the ranking score: keyword score weighted by the pattern's
	// learned confidence, plus the usage-frequency boost.
	Score float64
}

// Store consults and maintains learned patterns through the persistence
// layer. It is the only stateful part of the matching engine.
type Store struct {
	storage service.Storage
}

// NewStore creates a pattern store backed by the given storage.
func NewStore(storage service.Storage) *Store {
	return &Store{storage: storage}
}

// Lookup finds the best pattern for a description, requiring the primary
// keyword floor, an amount inside the pattern's recorded band, and a
// direction match. Returns nil when nothing qualifies.
func (s *Store) Lookup(ctx context.Context, description string, amount float64, dir model.Direction) (*Match, error) {
	return s.lookup(ctx, description, amount, dir, PrimaryFloor, "")
}

// LookupExpense runs the lower-bar secondary lookup restricted to
// expense-type patterns.
func (s *Store) LookupExpense(ctx context.Context, description string, amount float64, dir model.Direction) (*Match, error) {
	return s.lookup(ctx, description, amount, dir, SecondaryFloor, model.KindExpense)
}

func (s *Store) lookup(ctx context.Context, description string, amount float64, dir model.Direction, floor float64, kind model.RecordKind) (*Match, error) {
	patterns, err := s.storage.GetPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}

	fp := Fingerprint(description)
	if len(fp) == 0 {
		return nil, nil
	}

	abs := math.Abs(amount)
	var best *Match
	for i := range patterns {
		p := patterns[i]
		if p.Direction != dir {
			continue
		}
		if kind != "" && p.TargetType != kind {
			continue
		}
		if !p.AmountInBand(abs) {
			continue
		}

		ks := MatchScore(fp, p.Fingerprint)
		if ks < floor {
			continue
		}

		m := &Match{
			Pattern:      p,
			KeywordScore: ks,
			Score:        rankScore(&p, ks),
		}
		if best == nil || m.Score > best.Score ||
			(m.Score == best.Score && m.Pattern.ID < best.Pattern.ID) {
			best = m
		}
	}
	return best, nil
}

func rankScore(p *model.Pattern, keywordScore float64) float64 {
	boost := float64(p.MatchCount) / UsageBoostDivisor
	if boost > UsageBoostCap {
		boost = UsageBoostCap
	}
	score := keywordScore*p.Confidence + boost
	if score > rankCap {
		score = rankCap
	}
	return score
}

// Reinforce records a confirmed use of a pattern: the match count goes up
// and confidence climbs by the given step, capped at 1.
func (s *Store) Reinforce(ctx context.Context, p *model.Pattern, step float64) error {
	p.MatchCount++
	p.Confidence = math.Min(1, p.Confidence+step)
	p.UpdatedAt = time.Now()

	if err := s.storage.UpdatePattern(ctx, p); err != nil {
		return fmt.Errorf("failed to reinforce pattern %d: %w", p.ID, err)
	}

	slog.Debug("Reinforced pattern",
		"pattern_id", p.ID,
		"match_count", p.MatchCount,
		"confidence", p.Confidence)
	return nil
}

// Learn records a confirmed create decision. An existing pattern with a
// matching fingerprint is reinforced instead of duplicated; otherwise a new
// pattern is stored with a ±20% amount band around the observed amount.
// Auto-applied confirmations reinforce with the smaller step so unattended
// bulk runs build confidence more slowly than explicit confirmations.
func (s *Store) Learn(ctx context.Context, description string, amount float64, dir model.Direction, targetType model.RecordKind, targetRef string, split *model.SplitRatios, auto bool) error {
	fp := Fingerprint(description)
	if len(fp) == 0 {
		return nil
	}

	patterns, err := s.storage.GetPatterns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}

	step := ReinforceStep
	if auto {
		step = AutoReinforceStep
	}

	abs := math.Abs(amount)
	for i := range patterns {
		p := patterns[i]
		if p.Direction != dir || p.TargetType != targetType {
			continue
		}
		if MatchScore(fp, p.Fingerprint) >= PrimaryFloor {
			return s.Reinforce(ctx, &p, step)
		}
	}

	now := time.Now()
	newPattern := &model.Pattern{
		Fingerprint: fp,
		AmountMin:   abs * (1 - AmountBand),
		AmountMax:   abs * (1 + AmountBand),
		Direction:   dir,
		TargetType:  targetType,
		TargetRef:   targetRef,
		Confidence:  initialConfidence,
		MatchCount:  1,
		Split:       split,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.CreatePattern(ctx, newPattern); err != nil {
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	slog.Info("Learned new pattern",
		"fingerprint", newPattern.FingerprintKey(),
		"target_type", targetType,
		"direction", dir)
	return nil
}
