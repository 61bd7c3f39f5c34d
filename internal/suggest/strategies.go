package suggest

import (
	"context"
	"fmt"
	"sort"

	"github.com/ledgerline/loanbook/internal/match"
	"github.com/ledgerline/loanbook/internal/model"
	"github.com/ledgerline/loanbook/internal/pattern"
)

// Strategy is one rung of the suggestion priority cascade. Strategies are
// evaluated in fixed order; a strategy only runs while the best confidence
// so far is below its threshold.
type Strategy interface {
	Name() string
	// Threshold returns the best-so-far confidence below which this strategy
	// should still be consulted for the given entry.
	Threshold(entry *model.BankEntry) float64
	// TryMatch returns a candidate suggestion for the entry, or nil when the
	// strategy has nothing to offer. It must never reference claimed ids.
	TryMatch(ctx context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error)
}

// alwaysRun is the threshold for strategies that are evaluated
// unconditionally.
const alwaysRun = 1.0

func sortedRecords(recs []model.LedgerRecord) []model.LedgerRecord {
	out := make([]model.LedgerRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func recordGroupable(rec *model.LedgerRecord, pool string) match.Groupable {
	return match.Groupable{
		ID:          rec.ID,
		Date:        rec.Date,
		Amount:      rec.Amount,
		Description: rec.Description,
		Pool:        pool,
	}
}

func entryGroupable(e *model.BankEntry) match.Groupable {
	return match.Groupable{
		ID:          e.ID,
		Date:        e.Date,
		Amount:      e.AbsAmount(),
		Description: e.Description,
		Pool:        "bank",
	}
}

func groupExplanation(memberCount int, conf float64) model.Explanation {
	dateSeverity := model.SeverityWarning
	if conf >= 0.75 {
		dateSeverity = model.SeverityGood
	}
	return model.Explanation{
		Amount: model.ExplanationPart{
			Text:     fmt.Sprintf("%d entries sum to the target amount", memberCount),
			Severity: model.SeverityGood,
		},
		Date: model.ExplanationPart{
			Text:     "Group dates are within the allowed window",
			Severity: dateSeverity,
		},
	}
}

// directMatchStrategy scores every unclaimed, direction-compatible ledger
// record 1:1 against the entry and keeps the best.
type directMatchStrategy struct{}

func (directMatchStrategy) Name() string                         { return "direct_match" }
func (directMatchStrategy) Threshold(_ *model.BankEntry) float64 { return alwaysRun }

func (directMatchStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error) {
	candidates := sortedRecords(pools.MatchableForDirection(entry.Direction()))

	var best *model.MatchSuggestion
	for i := range candidates {
		rec := candidates[i]
		if claims.RecordClaimed(rec.ID) {
			continue
		}

		score := match.ScorePair(entry, &rec, pools.CounterpartName(rec.Owner))
		if score.Value == 0 {
			continue
		}
		if best != nil && score.Value <= best.Confidence {
			continue
		}

		best = &model.MatchSuggestion{
			BankEntryID: entry.ID,
			Mode:        model.ModeMatch,
			TargetType:  rec.Kind,
			Targets:     []model.LedgerRecord{rec},
			Confidence:  score.Value,
			Explanation: score.Explanation,
		}
	}
	return best, nil
}

// groupedDisbursementStrategy looks for several debit bank entries that sum
// to one unclaimed disbursement, anchored on the entry being processed.
type groupedDisbursementStrategy struct {
	grouper *match.Grouper
}

func (groupedDisbursementStrategy) Name() string                         { return "grouped_disbursement" }
func (groupedDisbursementStrategy) Threshold(_ *model.BankEntry) float64 { return alwaysRun }

func (s groupedDisbursementStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error) {
	if entry.Direction() != model.DirectionDebit {
		return nil, nil
	}

	anchor := entryGroupable(entry)
	var candidates []match.Groupable
	for i := range pools.Entries {
		e := &pools.Entries[i]
		if e.ID == entry.ID || e.IsReconciled || claims.EntryClaimed(e.ID) {
			continue
		}
		if e.Direction() != model.DirectionDebit {
			continue
		}
		candidates = append(candidates, entryGroupable(e))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var best *model.MatchSuggestion
	for _, disb := range sortedRecords(pools.Disbursements) {
		if !disb.Matchable() || claims.RecordClaimed(disb.ID) {
			continue
		}

		group := s.grouper.FindGroup(match.GroupQuery{
			Anchor:          anchor,
			Candidates:      candidates,
			TargetAmount:    disb.Amount,
			TargetDate:      disb.Date,
			CounterpartName: pools.CounterpartName(disb.Owner),
		})
		if group == nil {
			continue
		}
		if best != nil && group.Confidence <= best.Confidence {
			continue
		}

		best = &model.MatchSuggestion{
			BankEntryID:  entry.ID,
			Mode:         model.ModeGroupedDisbursement,
			TargetType:   model.KindDisbursement,
			Targets:      []model.LedgerRecord{disb},
			GroupEntries: group.MemberIDs(),
			Confidence:   group.Confidence,
			Explanation:  groupExplanation(len(group.Members), group.Confidence),
		}
	}
	return best, nil
}

// groupedRepaymentStrategy looks for several repayments of one borrower that
// sum to one credit bank entry.
type groupedRepaymentStrategy struct {
	grouper *match.Grouper
}

func (groupedRepaymentStrategy) Name() string                         { return "grouped_repayment" }
func (groupedRepaymentStrategy) Threshold(_ *model.BankEntry) float64 { return alwaysRun }

func (s groupedRepaymentStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error) {
	if entry.Direction() != model.DirectionCredit {
		return nil, nil
	}

	repayments := sortedRecords(pools.Repayments)
	for i := range repayments {
		anchorRec := repayments[i]
		if !anchorRec.Matchable() || claims.RecordClaimed(anchorRec.ID) {
			continue
		}

		var candidates []match.Groupable
		for j := range repayments {
			r := repayments[j]
			if !r.Matchable() || claims.RecordClaimed(r.ID) {
				continue
			}
			if r.Owner != anchorRec.Owner {
				continue
			}
			candidates = append(candidates, recordGroupable(&r, "repayment"))
		}

		group := s.grouper.FindGroup(match.GroupQuery{
			Anchor:          recordGroupable(&anchorRec, "repayment"),
			Candidates:      candidates,
			TargetAmount:    entry.AbsAmount(),
			TargetDate:      entry.Date,
			CounterpartName: pools.CounterpartName(anchorRec.Owner),
		})
		if group == nil {
			continue
		}

		return s.suggestion(entry, pools, group), nil
	}
	return nil, nil
}

func (groupedRepaymentStrategy) suggestion(entry *model.BankEntry, pools *Pools, group *match.Group) *model.MatchSuggestion {
	byID := make(map[string]model.LedgerRecord, len(pools.Repayments))
	for _, r := range pools.Repayments {
		byID[r.ID] = r
	}

	targets := make([]model.LedgerRecord, 0, len(group.Members))
	for _, m := range group.Members {
		targets = append(targets, byID[m.ID])
	}

	return &model.MatchSuggestion{
		BankEntryID: entry.ID,
		Mode:        model.ModeMatchGroup,
		TargetType:  model.KindRepayment,
		Targets:     targets,
		Confidence:  group.Confidence,
		Explanation: groupExplanation(len(group.Members), group.Confidence),
	}
}

// sharedContactRepaymentStrategy extends the grouped repayment search across
// borrowers that share a contact email. This heuristic conflates distinct
// counterparties behind one email on purpose; it is kept as its own strategy
// so it can be disabled independently.
type sharedContactRepaymentStrategy struct {
	grouper *match.Grouper
}

func (sharedContactRepaymentStrategy) Name() string                         { return "shared_contact_repayment" }
func (sharedContactRepaymentStrategy) Threshold(_ *model.BankEntry) float64 { return alwaysRun }

func (s sharedContactRepaymentStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error) {
	if entry.Direction() != model.DirectionCredit {
		return nil, nil
	}

	repayments := sortedRecords(pools.Repayments)
	for i := range repayments {
		anchorRec := repayments[i]
		if !anchorRec.Matchable() || claims.RecordClaimed(anchorRec.ID) {
			continue
		}

		email := pools.CounterpartEmail(anchorRec.Owner)
		if email == "" {
			continue
		}

		var candidates []match.Groupable
		for j := range repayments {
			r := repayments[j]
			if !r.Matchable() || claims.RecordClaimed(r.ID) {
				continue
			}
			if pools.CounterpartEmail(r.Owner) != email {
				continue
			}
			candidates = append(candidates, recordGroupable(&r, "repayment"))
		}

		group := s.grouper.FindGroup(match.GroupQuery{
			Anchor:          recordGroupable(&anchorRec, "repayment"),
			Candidates:      candidates,
			TargetAmount:    entry.AbsAmount(),
			TargetDate:      entry.Date,
			CounterpartName: pools.CounterpartName(anchorRec.Owner),
		})
		if group == nil {
			continue
		}

		return groupedRepaymentStrategy{}.suggestion(entry, pools, group), nil
	}
	return nil, nil
}

// investorCrossPoolStrategy sums an investor's capital-movement leg and
// interest-entry leg when neither alone matches the bank entry but the pair
// does. At least one member from each pool is required.
type investorCrossPoolStrategy struct {
	grouper *match.Grouper
}

func (investorCrossPoolStrategy) Name() string                         { return "investor_cross_pool" }
func (investorCrossPoolStrategy) Threshold(_ *model.BankEntry) float64 { return alwaysRun }

func (s investorCrossPoolStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, claims *ClaimSet) (*model.MatchSuggestion, error) {
	dir := entry.Direction()

	legsByInvestor := make(map[string][]model.LedgerRecord)
	collect := func(recs []model.LedgerRecord) {
		for _, r := range recs {
			if !r.Matchable() || claims.RecordClaimed(r.ID) {
				continue
			}
			if r.Kind.Direction() != dir || r.Owner.Type != model.OwnerInvestor {
				continue
			}
			legsByInvestor[r.Owner.ID] = append(legsByInvestor[r.Owner.ID], r)
		}
	}
	collect(pools.CapitalMovements)
	collect(pools.InterestEntries)

	investors := make([]string, 0, len(legsByInvestor))
	for id := range legsByInvestor {
		investors = append(investors, id)
	}
	sort.Strings(investors)

	for _, investorID := range investors {
		legs := sortedRecords(legsByInvestor[investorID])

		var anchorRec *model.LedgerRecord
		candidates := make([]match.Groupable, 0, len(legs))
		for i := range legs {
			pool := "interest"
			if legs[i].Kind == model.KindCapitalIn || legs[i].Kind == model.KindCapitalOut {
				pool = "capital"
				if anchorRec == nil {
					anchorRec = &legs[i]
				}
			}
			candidates = append(candidates, recordGroupable(&legs[i], pool))
		}
		if anchorRec == nil {
			continue
		}

		group := s.grouper.FindGroup(match.GroupQuery{
			Anchor:          recordGroupable(anchorRec, "capital"),
			Candidates:      candidates,
			TargetAmount:    entry.AbsAmount(),
			TargetDate:      entry.Date,
			CounterpartName: pools.CounterpartName(anchorRec.Owner),
			RequiredPools:   []string{"capital", "interest"},
		})
		if group == nil {
			continue
		}

		byID := make(map[string]model.LedgerRecord, len(legs))
		for _, r := range legs {
			byID[r.ID] = r
		}
		targets := make([]model.LedgerRecord, 0, len(group.Members))
		for _, m := range group.Members {
			targets = append(targets, byID[m.ID])
		}

		return &model.MatchSuggestion{
			BankEntryID: entry.ID,
			Mode:        model.ModeMatchGroup,
			TargetType:  anchorRec.Kind,
			Targets:     targets,
			Confidence:  group.Confidence,
			Explanation: groupExplanation(len(group.Members), group.Confidence),
		}, nil
	}
	return nil, nil
}

// patternStrategy consults the learned pattern store when direct matching
// confidence stayed low.
type patternStrategy struct {
	store *pattern.Store
	floor float64
}

func (patternStrategy) Name() string                           { return "learned_pattern" }
func (s patternStrategy) Threshold(_ *model.BankEntry) float64 { return s.floor }

func (s patternStrategy) TryMatch(ctx context.Context, entry *model.BankEntry, _ *Pools, _ *ClaimSet) (*model.MatchSuggestion, error) {
	m, err := s.store.Lookup(ctx, entry.Description, entry.Amount, entry.Direction())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	suggestion := &model.MatchSuggestion{
		BankEntryID:  entry.ID,
		Mode:         model.ModeCreate,
		TargetType:   m.Pattern.TargetType,
		Confidence:   m.Score,
		DefaultSplit: m.Pattern.Split,
		Explanation: model.Explanation{
			Amount: model.ExplanationPart{
				Text:     "Amount inside the learned tolerance band",
				Severity: model.SeverityGood,
			},
			Date: model.ExplanationPart{
				Text:     fmt.Sprintf("Matched learned pattern %q", m.Pattern.FingerprintKey()),
				Severity: model.SeverityGood,
			},
		},
	}
	if m.Pattern.TargetRef != "" {
		suggestion.TargetOwner = ownerForTarget(m.Pattern.TargetType, m.Pattern.TargetRef)
	}
	return suggestion, nil
}

func ownerForTarget(kind model.RecordKind, ref string) model.OwnerRef {
	switch kind {
	case model.KindRepayment, model.KindDisbursement:
		return model.OwnerRef{Type: model.OwnerLoan, ID: ref}
	case model.KindCapitalIn, model.KindCapitalOut, model.KindInterestDebit:
		return model.OwnerRef{Type: model.OwnerInvestor, ID: ref}
	case model.KindExpense:
	}
	return model.OwnerRef{Type: model.OwnerNone}
}

// expenseHeuristicConfidence is the fixed confidence assigned by the expense
// vocabulary heuristic.
const expenseHeuristicConfidence = 0.65

// expenseVocabulary maps description tokens that strongly suggest a business
// expense.
var expenseVocabulary = map[string]bool{
	"hmrc": true, "vat": true, "tax": true, "paye": true,
	"rent": true, "rates": true, "insurance": true,
	"salary": true, "salaries": true, "payroll": true, "wages": true,
	"utilities": true, "electricity": true, "broadband": true,
	"software": true, "subscription": true, "hosting": true,
	"accountancy": true, "accounting": true, "audit": true,
	"legal": true, "solicitors": true, "stationery": true,
}

// expenseKeywordStrategy proposes creating an expense when the description
// carries expense vocabulary and nothing better was found. When the fixed
// vocabulary has no opinion it falls back to learned expense patterns at the
// lower secondary floor.
type expenseKeywordStrategy struct {
	store *pattern.Store
	floor float64
}

func (expenseKeywordStrategy) Name() string                           { return "expense_keywords" }
func (s expenseKeywordStrategy) Threshold(_ *model.BankEntry) float64 { return s.floor }

func (s expenseKeywordStrategy) TryMatch(ctx context.Context, entry *model.BankEntry, _ *Pools, _ *ClaimSet) (*model.MatchSuggestion, error) {
	if entry.Direction() != model.DirectionDebit {
		return nil, nil
	}

	hit := ""
	for _, tok := range match.SignificantTokens(entry.Description) {
		if expenseVocabulary[tok] {
			hit = tok
			break
		}
	}
	if hit == "" {
		return s.patternFallback(ctx, entry)
	}

	return &model.MatchSuggestion{
		BankEntryID: entry.ID,
		Mode:        model.ModeCreate,
		TargetType:  model.KindExpense,
		Confidence:  expenseHeuristicConfidence,
		Explanation: model.Explanation{
			Amount: model.ExplanationPart{
				Text:     "No existing record within tolerance",
				Severity: model.SeverityWarning,
			},
			Date: model.ExplanationPart{
				Text:     fmt.Sprintf("Description keyword %q suggests an expense", hit),
				Severity: model.SeverityGood,
			},
		},
	}, nil
}

// patternFallback consults learned expense-type patterns at the secondary
// floor, which accepts weaker fingerprint overlap than the primary lookup.
func (s expenseKeywordStrategy) patternFallback(ctx context.Context, entry *model.BankEntry) (*model.MatchSuggestion, error) {
	m, err := s.store.LookupExpense(ctx, entry.Description, entry.Amount, entry.Direction())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	return &model.MatchSuggestion{
		BankEntryID:  entry.ID,
		Mode:         model.ModeCreate,
		TargetType:   model.KindExpense,
		Confidence:   m.Score,
		DefaultSplit: m.Pattern.Split,
		Explanation: model.Explanation{
			Amount: model.ExplanationPart{
				Text:     "Amount inside the learned tolerance band",
				Severity: model.SeverityWarning,
			},
			Date: model.ExplanationPart{
				Text:     fmt.Sprintf("Weak match on learned expense pattern %q", m.Pattern.FingerprintKey()),
				Severity: model.SeverityWarning,
			},
		},
	}, nil
}

// Name fallback confidences.
const (
	nameFallbackFullConfidence  = 0.50
	nameFallbackTokenConfidence = 0.45
)

// nameFallbackStrategy proposes a create against a live counterparty whose
// name appears in the description, as a last resort before giving up.
type nameFallbackStrategy struct {
	creditFloor float64
	debitFloor  float64
}

func (nameFallbackStrategy) Name() string { return "name_fallback" }

func (s nameFallbackStrategy) Threshold(entry *model.BankEntry) float64 {
	if entry.Direction() == model.DirectionDebit {
		return s.debitFloor
	}
	return s.creditFloor
}

func (s nameFallbackStrategy) TryMatch(_ context.Context, entry *model.BankEntry, pools *Pools, _ *ClaimSet) (*model.MatchSuggestion, error) {
	var best *model.MatchSuggestion

	counterparties := make([]model.Counterparty, len(pools.Counterparties))
	copy(counterparties, pools.Counterparties)
	sort.Slice(counterparties, func(i, j int) bool { return counterparties[i].ID < counterparties[j].ID })

	for i := range counterparties {
		c := &counterparties[i]

		var confidence float64
		switch {
		case match.ContainsName(entry.Description, c.DisplayName()):
			confidence = nameFallbackFullConfidence
		case match.ContainsNameToken(entry.Description, c.DisplayName()):
			confidence = nameFallbackTokenConfidence
		default:
			continue
		}
		if best != nil && confidence <= best.Confidence {
			continue
		}

		best = &model.MatchSuggestion{
			BankEntryID: entry.ID,
			Mode:        model.ModeCreate,
			TargetType:  fallbackKind(entry.Direction(), c.OwnerType),
			TargetOwner: model.OwnerRef{Type: c.OwnerType, ID: c.OwnerID, Name: c.DisplayName()},
			Confidence:  confidence,
			Explanation: model.Explanation{
				Amount: model.ExplanationPart{
					Text:     "No existing record within tolerance",
					Severity: model.SeverityWarning,
				},
				Date: model.ExplanationPart{
					Text:     fmt.Sprintf("Description mentions %s", c.DisplayName()),
					Severity: model.SeverityWarning,
				},
			},
		}
	}
	return best, nil
}

func fallbackKind(dir model.Direction, owner model.OwnerType) model.RecordKind {
	if owner == model.OwnerInvestor {
		if dir == model.DirectionCredit {
			return model.KindCapitalIn
		}
		return model.KindCapitalOut
	}
	if dir == model.DirectionCredit {
		return model.KindRepayment
	}
	return model.KindDisbursement
}
