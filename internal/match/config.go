// Package match implements the similarity primitives, pair scoring and
// bounded group search used by bank statement reconciliation.
package match

// Matching constants. These values are deliberately preserved as tuned,
// overridable numbers; behavioral parity matters more than rederiving them.
const (
	// ExactAmountTolerance is the relative band inside which two amounts are
	// treated as identical.
	ExactAmountTolerance = 0.001
	// CloseAmountTolerance is the relative band inside which two amounts are
	// treated as close.
	CloseAmountTolerance = 0.05
	// GroupSumTolerance is the relative band a group sum must hit the target
	// amount within.
	GroupSumTolerance = 0.01
	// NameBoostFull is added when the counterpart's full normalized name
	// appears in the bank description.
	NameBoostFull = 0.15
	// NameBoostPartial is added when only a single name token appears.
	NameBoostPartial = 0.08
	// ScoreCap is the maximum confidence any scored pair can reach.
	ScoreCap = 0.99
	// DescriptionOverlapFloor is the minimum shared significant-word overlap
	// for group members to count as mutually related.
	DescriptionOverlapFloor = 0.5
)

// Config carries the tunable knobs for group search and suggestion building.
type Config struct {
	// AcceptanceFloor is the minimum confidence for a suggestion to be kept.
	AcceptanceFloor float64
	// GroupAnchorWindowDays restricts group candidates to entries near the
	// anchor entry.
	GroupAnchorWindowDays int
	// GroupTargetWindowDays restricts group members to dates near the target
	// record's own date.
	GroupTargetWindowDays int
	// MinGroupSize and MaxGroupSize bound the subset-sum search.
	MinGroupSize int
	MaxGroupSize int
	// PatternFloor gates the learned-pattern lookup: it only runs when the
	// best direct score is below this value.
	PatternFloor float64
	// ExpenseHeuristicFloor gates the description-keyword heuristics.
	ExpenseHeuristicFloor float64
	// NameFallbackFloor gates the name-similarity fallback for credits.
	NameFallbackFloor float64
	// NameFallbackFloorDebit gates the name-similarity fallback for debits.
	NameFallbackFloorDebit float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		AcceptanceFloor:        0.35,
		GroupAnchorWindowDays:  3,
		GroupTargetWindowDays:  14,
		MinGroupSize:           2,
		MaxGroupSize:           5,
		PatternFloor:           0.7,
		ExpenseHeuristicFloor:  0.6,
		NameFallbackFloor:      0.5,
		NameFallbackFloorDebit: 0.45,
	}
}
