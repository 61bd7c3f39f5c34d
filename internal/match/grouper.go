package match

import (
	"math"
	"sort"
	"time"
)

// Group confidence levels. All of these sit strictly below the 0.95 score of
// a clean exact same-day pair, so single matches win when available.
const (
	groupConfidenceBest     = 0.92 // same day and near the target date
	groupConfidenceNear     = 0.80 // all members near the target date
	groupConfidenceSameDay  = 0.75 // all members on one day
	groupConfidenceBaseline = 0.60
)

// nearTargetWindowDays is the window used for the "all near the target date"
// confidence flag, not for candidate filtering.
const nearTargetWindowDays = 3

// Groupable is the pool-agnostic shape the grouper works over: either bank
// entries summing to one ledger record, or ledger records summing to one
// bank entry. Amount is absolute.
type Groupable struct {
	Date        time.Time
	ID          string
	Pool        string
	Description string
	Amount      float64
}

// Group is a found combination. Members always starts with the anchor.
type Group struct {
	Members    []Groupable
	Sum        float64
	Confidence float64
}

// MemberIDs returns the IDs of all group members, anchor included.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// GroupQuery describes one group search.
type GroupQuery struct {
	TargetDate time.Time
	Anchor     Groupable
	Candidates []Groupable
	// CounterpartName, when set, lets name containment substitute for
	// description relatedness.
	CounterpartName string
	// RequiredPools forces at least one member from each named pool, used by
	// the cross-pool investor search.
	RequiredPools []string
	TargetAmount  float64
}

// Grouper performs the bounded subset-sum search.
type Grouper struct {
	cfg Config
}

// NewGrouper creates a grouper with the given configuration.
func NewGrouper(cfg Config) *Grouper {
	return &Grouper{cfg: cfg}
}

// FindGroup searches for the smallest group of 2..MaxGroupSize entries,
// anchored on q.Anchor, whose amounts sum to q.TargetAmount within the group
// tolerance. Candidates outside the anchor day window or the target day
// window are never considered. Returns nil when no valid group exists.
func (g *Grouper) FindGroup(q GroupQuery) *Group {
	target := math.Abs(q.TargetAmount)
	if target == 0 {
		return nil
	}

	// The anchor itself must sit within the target window, otherwise any
	// group would be chronologically nonsensical.
	if DaysBetween(q.Anchor.Date, q.TargetDate) > g.cfg.GroupTargetWindowDays {
		return nil
	}

	pool := g.filterCandidates(q)
	if len(pool) == 0 {
		return nil
	}

	tolerance := target * GroupSumTolerance
	anchorAmount := math.Abs(q.Anchor.Amount)

	// Prefer the smallest valid group.
	for size := g.cfg.MinGroupSize; size <= g.cfg.MaxGroupSize; size++ {
		chosen := make([]Groupable, 0, size-1)
		if found := g.search(q, pool, 0, size-1, anchorAmount, target, tolerance, chosen); found != nil {
			return found
		}
	}
	return nil
}

// filterCandidates drops the anchor itself and anything outside the day
// windows, then sorts for deterministic search order.
func (g *Grouper) filterCandidates(q GroupQuery) []Groupable {
	var pool []Groupable
	for _, c := range q.Candidates {
		if c.ID == q.Anchor.ID {
			continue
		}
		if DaysBetween(c.Date, q.Anchor.Date) > g.cfg.GroupAnchorWindowDays {
			continue
		}
		if DaysBetween(c.Date, q.TargetDate) > g.cfg.GroupTargetWindowDays {
			continue
		}
		pool = append(pool, c)
	}

	sort.Slice(pool, func(i, j int) bool {
		if !pool[i].Date.Equal(pool[j].Date) {
			return pool[i].Date.Before(pool[j].Date)
		}
		return pool[i].ID < pool[j].ID
	})
	return pool
}

// search recursively picks `remaining` more members starting at pool[start].
func (g *Grouper) search(q GroupQuery, pool []Groupable, start, remaining int, sum, target, tolerance float64, chosen []Groupable) *Group {
	if remaining == 0 {
		if math.Abs(sum-target) > tolerance {
			return nil
		}
		members := make([]Groupable, 0, len(chosen)+1)
		members = append(members, q.Anchor)
		members = append(members, chosen...)
		if !g.validGroup(members, q) {
			return nil
		}
		return &Group{
			Members:    members,
			Sum:        sum,
			Confidence: g.scoreGroup(members, q.TargetDate),
		}
	}

	for i := start; i <= len(pool)-remaining; i++ {
		next := sum + math.Abs(pool[i].Amount)
		// Amounts are absolute, so an overshoot can never recover.
		if next > target+tolerance {
			continue
		}
		if found := g.search(q, pool, i+1, remaining-1, next, target, tolerance, append(chosen, pool[i])); found != nil {
			return found
		}
	}
	return nil
}

// validGroup guards against accidental numeric coincidences: members must be
// mutually related by description, or the counterpart's name must appear in
// at least one member. Cross-pool queries additionally require every named
// pool to be represented.
func (g *Grouper) validGroup(members []Groupable, q GroupQuery) bool {
	for _, required := range q.RequiredPools {
		found := false
		for _, m := range members {
			if m.Pool == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q.CounterpartName != "" {
		for _, m := range members {
			if ContainsName(m.Description, q.CounterpartName) {
				return true
			}
		}
	}

	return g.mutuallyRelated(members)
}

func (g *Grouper) mutuallyRelated(members []Groupable) bool {
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if TokenOverlap(members[i].Description, members[j].Description) < DescriptionOverlapFloor {
				return false
			}
		}
	}
	return true
}

// scoreGroup blends "all on one day" and "all near the target date" into a
// discrete confidence.
func (g *Grouper) scoreGroup(members []Groupable, targetDate time.Time) float64 {
	allSameDay := true
	allNearTarget := true
	for _, m := range members {
		if DaysBetween(m.Date, members[0].Date) != 0 {
			allSameDay = false
		}
		if DaysBetween(m.Date, targetDate) > nearTargetWindowDays {
			allNearTarget = false
		}
	}

	switch {
	case allSameDay && allNearTarget:
		return groupConfidenceBest
	case allNearTarget:
		return groupConfidenceNear
	case allSameDay:
		return groupConfidenceSameDay
	}
	return groupConfidenceBaseline
}
