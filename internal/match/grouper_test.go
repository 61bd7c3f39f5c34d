package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrouper() *Grouper {
	return NewGrouper(DefaultConfig())
}

func groupable(id string, d time.Time, amount float64, desc string) Groupable {
	return Groupable{ID: id, Date: d, Amount: amount, Description: desc}
}

func TestFindGroupPartialRepayments(t *testing.T) {
	// Three related bank credits summing to one repayment record.
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", date(2024, time.May, 9), 400.00, "ACME LTD PART 1")
	candidates := []Groupable{
		anchor,
		groupable("be-2", date(2024, time.May, 9), 350.00, "ACME LTD PART 2"),
		groupable("be-3", date(2024, time.May, 10), 250.00, "ACME LTD PART 3"),
		groupable("be-4", date(2024, time.May, 9), 125.00, "UNRELATED GROCER"),
	}

	group := testGrouper().FindGroup(GroupQuery{
		TargetAmount: 1000.00,
		TargetDate:   target,
		Anchor:       anchor,
		Candidates:   candidates,
	})

	require.NotNil(t, group)
	assert.ElementsMatch(t, []string{"be-1", "be-2", "be-3"}, group.MemberIDs())
	assert.InDelta(t, 1000.00, group.Sum, 0.001)
	// All members within 3 days of target but not all on one day.
	assert.InDelta(t, groupConfidenceNear, group.Confidence, 0.001)
	// Anchor leads the member list.
	assert.Equal(t, "be-1", group.Members[0].ID)
}

func TestFindGroupSumTolerance(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", target, 600.00, "ACME LTD A")

	t.Run("within 1 percent accepted", func(t *testing.T) {
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount: 1000.00,
			TargetDate:   target,
			Anchor:       anchor,
			Candidates: []Groupable{
				groupable("be-2", target, 395.00, "ACME LTD B"),
			},
		})
		require.NotNil(t, group)
		assert.InDelta(t, 995.00, group.Sum, 0.001)
	})

	t.Run("past 1 percent rejected", func(t *testing.T) {
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount: 1000.00,
			TargetDate:   target,
			Anchor:       anchor,
			Candidates: []Groupable{
				groupable("be-2", target, 380.00, "ACME LTD B"),
			},
		})
		assert.Nil(t, group)
	})
}

func TestFindGroupWindows(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", target, 600.00, "ACME LTD A")

	t.Run("candidate outside anchor window excluded", func(t *testing.T) {
		// 4 days from the anchor breaches the 3-day anchor window even
		// though it is within the 14-day target window.
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount: 1000.00,
			TargetDate:   target,
			Anchor:       anchor,
			Candidates: []Groupable{
				groupable("be-2", target.AddDate(0, 0, 4), 400.00, "ACME LTD B"),
			},
		})
		assert.Nil(t, group)
	})

	t.Run("anchor outside target window rejected", func(t *testing.T) {
		farAnchor := groupable("be-1", target.AddDate(0, 0, 20), 600.00, "ACME LTD A")
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount: 1000.00,
			TargetDate:   target,
			Anchor:       farAnchor,
			Candidates: []Groupable{
				groupable("be-2", farAnchor.Date, 400.00, "ACME LTD B"),
			},
		})
		assert.Nil(t, group)
	})
}

func TestFindGroupRelatednessGuard(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", target, 600.00, "ACME LTD A")

	t.Run("unrelated descriptions rejected", func(t *testing.T) {
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount: 1000.00,
			TargetDate:   target,
			Anchor:       anchor,
			Candidates: []Groupable{
				groupable("be-2", target, 400.00, "GLOBEX WIDGETS"),
			},
		})
		assert.Nil(t, group)
	})

	t.Run("counterpart name containment substitutes", func(t *testing.T) {
		group := testGrouper().FindGroup(GroupQuery{
			TargetAmount:    1000.00,
			TargetDate:      target,
			Anchor:          anchor,
			CounterpartName: "Acme Ltd",
			Candidates: []Groupable{
				groupable("be-2", target, 400.00, "GLOBEX WIDGETS"),
			},
		})
		require.NotNil(t, group)
		assert.InDelta(t, groupConfidenceBest, group.Confidence, 0.001)
	})
}

func TestFindGroupRequiredPools(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := Groupable{
		ID: "rec-1", Date: target, Amount: 600.00,
		Description: "INVESTOR SMITH CAPITAL", Pool: "capital",
	}

	query := GroupQuery{
		TargetAmount:    1000.00,
		TargetDate:      target,
		Anchor:          anchor,
		CounterpartName: "Smith",
		RequiredPools:   []string{"capital", "interest"},
	}

	t.Run("both pools present", func(t *testing.T) {
		q := query
		q.Candidates = []Groupable{
			{ID: "rec-2", Date: target, Amount: 400.00, Description: "INVESTOR SMITH INTEREST", Pool: "interest"},
		}
		group := testGrouper().FindGroup(q)
		require.NotNil(t, group)
	})

	t.Run("missing pool rejected", func(t *testing.T) {
		q := query
		q.Candidates = []Groupable{
			{ID: "rec-2", Date: target, Amount: 400.00, Description: "INVESTOR SMITH CAPITAL 2", Pool: "capital"},
		}
		group := testGrouper().FindGroup(q)
		assert.Nil(t, group)
	})
}

func TestFindGroupPrefersSmallest(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", target, 500.00, "ACME LTD A")
	candidates := []Groupable{
		groupable("be-2", target, 500.00, "ACME LTD B"),
		groupable("be-3", target, 250.00, "ACME LTD C"),
		groupable("be-4", target, 250.00, "ACME LTD D"),
	}

	group := testGrouper().FindGroup(GroupQuery{
		TargetAmount: 1000.00,
		TargetDate:   target,
		Anchor:       anchor,
		Candidates:   candidates,
	})

	require.NotNil(t, group)
	assert.Len(t, group.Members, 2)
	assert.ElementsMatch(t, []string{"be-1", "be-2"}, group.MemberIDs())
}

func TestFindGroupBoundsAndDeterminism(t *testing.T) {
	target := date(2024, time.May, 10)
	anchor := groupable("be-1", target, 100.00, "ACME LTD X")

	// Six 100.00 candidates: a valid sum of 1000 would need ten members,
	// far past the size ceiling, so no group exists.
	var candidates []Groupable
	for _, id := range []string{"be-2", "be-3", "be-4", "be-5", "be-6", "be-7"} {
		candidates = append(candidates, groupable(id, target, 100.00, "ACME LTD X"))
	}

	assert.Nil(t, testGrouper().FindGroup(GroupQuery{
		TargetAmount: 1000.00,
		TargetDate:   target,
		Anchor:       anchor,
		Candidates:   candidates,
	}))

	// A reachable target resolves identically on every run regardless of
	// candidate input order.
	query := GroupQuery{
		TargetAmount: 500.00,
		TargetDate:   target,
		Anchor:       anchor,
		Candidates:   candidates,
	}
	first := testGrouper().FindGroup(query)
	require.NotNil(t, first)
	require.Len(t, first.Members, 5)

	reversed := make([]Groupable, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}
	query.Candidates = reversed
	second := testGrouper().FindGroup(query)
	require.NotNil(t, second)
	assert.Equal(t, first.MemberIDs(), second.MemberIDs())
}
