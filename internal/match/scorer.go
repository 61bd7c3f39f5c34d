package match

import (
	"fmt"

	"github.com/ledgerline/loanbook/internal/model"
)

// Score is the outcome of scoring one (bank entry, ledger record) pair. The
// explanation is reproducible from the same inputs and is used both for
// ranking and for human-readable display.
type Score struct {
	Explanation model.Explanation
	Value       float64
}

// ScorePair computes a confidence score in [0, ScoreCap] for linking a bank
// entry to a ledger record. Amounts are compared as absolute values; the
// caller is responsible for filtering candidates to the entry's direction.
// counterpartName may be empty when the candidate has no resolvable owner.
func ScorePair(entry *model.BankEntry, rec *model.LedgerRecord, counterpartName string) Score {
	class := ClassifyAmount(entry.Amount, rec.Amount)
	days := DaysBetween(entry.Date, rec.Date)

	value := combinedScore(class, days)

	if value > 0 && counterpartName != "" {
		if ContainsName(entry.Description, counterpartName) {
			value += NameBoostFull
		} else if ContainsNameToken(entry.Description, counterpartName) {
			value += NameBoostPartial
		}
		if value > ScoreCap {
			value = ScoreCap
		}
	}

	return Score{
		Value: value,
		Explanation: model.Explanation{
			Amount: amountExplanation(class),
			Date:   dateExplanation(days),
		},
	}
}

// combinedScore implements the amount-class by date-bucket score table. The
// highest applicable bucket wins; anything past 30 days keeps a residual 0.1
// so a later name boost can still surface it.
func combinedScore(class AmountClass, days int) float64 {
	switch class {
	case AmountExact:
		switch {
		case days == 0:
			return 0.95
		case days <= 3:
			return 0.85
		case days <= 7:
			return 0.75
		case days <= 14:
			return 0.50
		case days <= 30:
			return 0.30
		}
		return 0.10
	case AmountClose:
		switch {
		case days == 0:
			return 0.70
		case days <= 3:
			return 0.60
		case days <= 7:
			return 0.45
		case days <= 14:
			return 0.25
		}
		return 0.10
	case AmountFar:
	}
	return 0
}

func amountExplanation(class AmountClass) model.ExplanationPart {
	switch class {
	case AmountExact:
		return model.ExplanationPart{Text: "Amount matches exactly", Severity: model.SeverityGood}
	case AmountClose:
		return model.ExplanationPart{Text: "Amount within 5% tolerance", Severity: model.SeverityWarning}
	case AmountFar:
	}
	return model.ExplanationPart{Text: "Amounts differ by more than 5%", Severity: model.SeverityPoor}
}

func dateExplanation(days int) model.ExplanationPart {
	var text string
	switch days {
	case 0:
		text = "Same day"
	case 1:
		text = "1 day apart"
	default:
		text = fmt.Sprintf("%d days apart", days)
	}

	severity := model.SeverityGood
	switch {
	case days > 14:
		severity = model.SeverityPoor
	case days > 3:
		severity = model.SeverityWarning
	}

	return model.ExplanationPart{Text: text, Severity: severity}
}
