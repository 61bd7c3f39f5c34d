package match

import (
	"testing"
	"time"

	"github.com/ledgerline/loanbook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePairCombinedTable(t *testing.T) {
	base := date(2024, time.April, 10)

	tests := []struct {
		name      string
		recAmount float64
		daysApart int
		want      float64
	}{
		{name: "exact same day", recAmount: 500.00, daysApart: 0, want: 0.95},
		{name: "exact 3 days", recAmount: 500.00, daysApart: 3, want: 0.85},
		{name: "exact 7 days", recAmount: 500.00, daysApart: 7, want: 0.75},
		{name: "exact 14 days", recAmount: 500.00, daysApart: 14, want: 0.50},
		{name: "exact 30 days", recAmount: 500.00, daysApart: 30, want: 0.30},
		{name: "exact 31 days", recAmount: 500.00, daysApart: 31, want: 0.10},
		{name: "close same day", recAmount: 510.00, daysApart: 0, want: 0.70},
		{name: "close 3 days", recAmount: 510.00, daysApart: 3, want: 0.60},
		{name: "close 7 days", recAmount: 510.00, daysApart: 7, want: 0.45},
		{name: "close 14 days", recAmount: 510.00, daysApart: 14, want: 0.25},
		{name: "close 20 days", recAmount: 510.00, daysApart: 20, want: 0.10},
		{name: "far same day", recAmount: 900.00, daysApart: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &model.BankEntry{ID: "be-1", Date: base, Amount: 500.00, Description: "payment"}
			rec := &model.LedgerRecord{
				ID:     "rec-1",
				Date:   base.AddDate(0, 0, tt.daysApart),
				Amount: tt.recAmount,
				Kind:   model.KindRepayment,
			}
			score := ScorePair(entry, rec, "")
			assert.InDelta(t, tt.want, score.Value, 0.001)
		})
	}
}

func TestScorePairNameBoost(t *testing.T) {
	base := date(2024, time.April, 10)
	entry := &model.BankEntry{
		ID:          "be-1",
		Date:        base,
		Amount:      500.00,
		Description: "FASTER PAYMENT ACME LTD",
	}
	rec := &model.LedgerRecord{
		ID:     "rec-1",
		Date:   base.AddDate(0, 0, 3),
		Amount: 500.00,
		Kind:   model.KindRepayment,
	}

	t.Run("full name containment adds 0.15", func(t *testing.T) {
		score := ScorePair(entry, rec, "Acme Limited")
		assert.InDelta(t, 0.85+NameBoostFull, score.Value, 0.001)
	})

	t.Run("token containment adds 0.08", func(t *testing.T) {
		e := &model.BankEntry{ID: "be-2", Date: base, Amount: 500.00, Description: "PAYMENT JONES 4411"}
		r := &model.LedgerRecord{ID: "rec-2", Date: base.AddDate(0, 0, 3), Amount: 500.00, Kind: model.KindRepayment}
		score := ScorePair(e, r, "Smith Jones Partners")
		assert.InDelta(t, 0.85+NameBoostPartial, score.Value, 0.001)
	})

	t.Run("boost capped at 0.99", func(t *testing.T) {
		sameDay := &model.LedgerRecord{ID: "rec-3", Date: base, Amount: 500.00, Kind: model.KindRepayment}
		score := ScorePair(entry, sameDay, "Acme Limited")
		assert.InDelta(t, ScoreCap, score.Value, 0.001)
	})

	t.Run("no boost on zero base score", func(t *testing.T) {
		far := &model.LedgerRecord{ID: "rec-4", Date: base, Amount: 9000.00, Kind: model.KindRepayment}
		score := ScorePair(entry, far, "Acme Limited")
		assert.Zero(t, score.Value)
	})
}

func TestScorePairExplanation(t *testing.T) {
	base := date(2024, time.April, 10)
	entry := &model.BankEntry{ID: "be-1", Date: base, Amount: 500.00, Description: "payment"}

	rec := &model.LedgerRecord{ID: "rec-1", Date: base, Amount: 500.00, Kind: model.KindRepayment}
	score := ScorePair(entry, rec, "")
	require.Equal(t, model.SeverityGood, score.Explanation.Amount.Severity)
	require.Equal(t, model.SeverityGood, score.Explanation.Date.Severity)
	assert.Equal(t, "Same day", score.Explanation.Date.Text)

	stale := &model.LedgerRecord{ID: "rec-2", Date: base.AddDate(0, 0, 20), Amount: 520.00, Kind: model.KindRepayment}
	score = ScorePair(entry, stale, "")
	assert.Equal(t, model.SeverityWarning, score.Explanation.Amount.Severity)
	assert.Equal(t, model.SeverityPoor, score.Explanation.Date.Severity)
	assert.Equal(t, "20 days apart", score.Explanation.Date.Text)
}

func TestScorePairDeterministic(t *testing.T) {
	base := date(2024, time.April, 10)
	entry := &model.BankEntry{ID: "be-1", Date: base, Amount: 250.00, Description: "ACME LTD"}
	rec := &model.LedgerRecord{ID: "rec-1", Date: base.AddDate(0, 0, 2), Amount: 250.00, Kind: model.KindRepayment}

	first := ScorePair(entry, rec, "Acme Ltd")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ScorePair(entry, rec, "Acme Ltd"))
	}
}
