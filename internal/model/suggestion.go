package model

// SuggestionMode describes how a suggestion proposes to resolve a bank entry.
type SuggestionMode string

// Suggestion modes.
const (
	// ModeMatch links one existing ledger record to the bank entry.
	ModeMatch SuggestionMode = "match"
	// ModeMatchGroup links several existing ledger records to one bank entry.
	ModeMatchGroup SuggestionMode = "match_group"
	// ModeGroupedDisbursement links several bank entries to one existing
	// disbursement record.
	ModeGroupedDisbursement SuggestionMode = "grouped_disbursement"
	// ModeCreate proposes creating a new ledger record from the bank entry.
	ModeCreate SuggestionMode = "create"
)

// Severity grades an explanation line for display.
type Severity string

// Explanation severities.
const (
	SeverityGood    Severity = "good"
	SeverityWarning Severity = "warning"
	SeverityPoor    Severity = "poor"
)

// ExplanationPart is one human-readable facet of a match explanation.
type ExplanationPart struct {
	Text     string
	Severity Severity
}

// Explanation breaks a confidence score down for human review.
type Explanation struct {
	Amount ExplanationPart
	Date   ExplanationPart
}

// SplitRatios records how an amount decomposes for reuse when creating
// records from learned patterns. Ratios sum to 1.
type SplitRatios struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Fees      float64 `json:"fees"`
}

// MatchSuggestion is an ephemeral reconciliation proposal for one bank entry.
// Suggestions are recomputed on every pass and never persisted.
type MatchSuggestion struct {
	BankEntryID  string
	Mode         SuggestionMode
	TargetType   RecordKind
	Targets      []LedgerRecord
	GroupEntries []string // bank entry IDs consumed by a grouped disbursement
	TargetOwner  OwnerRef // proposed owner for create-mode suggestions
	Confidence   float64
	Explanation  Explanation
	DefaultSplit *SplitRatios
}

// TargetIDs returns the IDs of all referenced ledger records.
func (s *MatchSuggestion) TargetIDs() []string {
	ids := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		ids[i] = t.ID
	}
	return ids
}
