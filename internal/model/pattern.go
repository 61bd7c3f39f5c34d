package model

import (
	"strings"
	"time"
)

// Pattern is a learned description-to-target rule. Patterns are created the
// first time a human confirms a create-type suggestion and reinforced on every
// repeat confirmation. They are never auto-deleted.
type Pattern struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Fingerprint []string
	TargetRef   string
	ID          int64
	TargetType  RecordKind
	Direction   Direction
	AmountMin   float64
	AmountMax   float64
	Confidence  float64
	MatchCount  int
	Split       *SplitRatios
}

// FingerprintKey returns the stored fingerprint as a stable string key.
func (p *Pattern) FingerprintKey() string {
	return strings.Join(p.Fingerprint, " ")
}

// AmountInBand reports whether an (absolute) amount falls inside the
// pattern's recorded tolerance band.
func (p *Pattern) AmountInBand(amount float64) bool {
	return amount >= p.AmountMin && amount <= p.AmountMax
}
