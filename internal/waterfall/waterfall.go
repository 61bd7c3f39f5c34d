// Package waterfall allocates incoming loan repayments across an
// amortization schedule. Allocation is done in decimal arithmetic so that
// component totals always add up to the payment to the cent.
package waterfall

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/loanbook/internal/model"
)

// Allocation records how much of a payment landed on one installment.
type Allocation struct {
	Sequence  int
	Principal float64
	Interest  float64
	Fees      float64
}

// Result summarizes one waterfall application.
type Result struct {
	Allocations   []Allocation
	PrincipalPaid float64
	InterestPaid  float64
	FeesPaid      float64
	// Remainder is any overpayment left after the whole schedule is
	// satisfied.
	Remainder float64
	// FullySettled reports whether every installment is fully paid after
	// this application.
	FullySettled bool
}

// Apply walks the schedule oldest-first and allocates the payment per
// installment in fees, interest, principal order. The schedule slice is
// mutated in place: paid amounts are advanced on each installment the
// payment touches.
func Apply(payment float64, schedule []model.Installment) Result {
	sort.Slice(schedule, func(i, j int) bool {
		return schedule[i].Sequence < schedule[j].Sequence
	})

	remaining := decimal.NewFromFloat(payment).Round(2)
	var result Result

	totalPrincipal := decimal.Zero
	totalInterest := decimal.Zero
	totalFees := decimal.Zero

	for i := range schedule {
		if remaining.IsZero() {
			break
		}
		inst := &schedule[i]

		fees := allocate(&remaining, inst.FeesDue, inst.FeesPaid)
		interest := allocate(&remaining, inst.InterestDue, inst.InterestPaid)
		principal := allocate(&remaining, inst.PrincipalDue, inst.PrincipalPaid)

		if fees.IsZero() && interest.IsZero() && principal.IsZero() {
			continue
		}

		inst.FeesPaid = decimal.NewFromFloat(inst.FeesPaid).Add(fees).Round(2).InexactFloat64()
		inst.InterestPaid = decimal.NewFromFloat(inst.InterestPaid).Add(interest).Round(2).InexactFloat64()
		inst.PrincipalPaid = decimal.NewFromFloat(inst.PrincipalPaid).Add(principal).Round(2).InexactFloat64()

		totalFees = totalFees.Add(fees)
		totalInterest = totalInterest.Add(interest)
		totalPrincipal = totalPrincipal.Add(principal)

		result.Allocations = append(result.Allocations, Allocation{
			Sequence:  inst.Sequence,
			Principal: principal.InexactFloat64(),
			Interest:  interest.InexactFloat64(),
			Fees:      fees.InexactFloat64(),
		})
	}

	result.PrincipalPaid = totalPrincipal.InexactFloat64()
	result.InterestPaid = totalInterest.InexactFloat64()
	result.FeesPaid = totalFees.InexactFloat64()
	result.Remainder = remaining.InexactFloat64()

	result.FullySettled = true
	for i := range schedule {
		if !schedule[i].Settled() {
			result.FullySettled = false
			break
		}
	}
	return result
}

// allocate takes as much of remaining as the component still owes and
// returns the allocated amount.
func allocate(remaining *decimal.Decimal, due, paid float64) decimal.Decimal {
	owed := decimal.NewFromFloat(due).Sub(decimal.NewFromFloat(paid)).Round(2)
	if owed.Sign() <= 0 || remaining.Sign() <= 0 {
		return decimal.Zero
	}

	take := owed
	if remaining.LessThan(owed) {
		take = *remaining
	}
	*remaining = remaining.Sub(take)
	return take
}

// Reverse backs a previously applied payment out of the schedule, newest
// installment first, in principal, interest, fees order: the exact inverse
// of Apply.
func Reverse(payment float64, schedule []model.Installment) {
	sort.Slice(schedule, func(i, j int) bool {
		return schedule[i].Sequence > schedule[j].Sequence
	})

	remaining := decimal.NewFromFloat(payment).Round(2)
	for i := range schedule {
		if remaining.Sign() <= 0 {
			break
		}
		inst := &schedule[i]

		principal := reclaim(&remaining, inst.PrincipalPaid)
		interest := reclaim(&remaining, inst.InterestPaid)
		fees := reclaim(&remaining, inst.FeesPaid)

		inst.PrincipalPaid = decimal.NewFromFloat(inst.PrincipalPaid).Sub(principal).Round(2).InexactFloat64()
		inst.InterestPaid = decimal.NewFromFloat(inst.InterestPaid).Sub(interest).Round(2).InexactFloat64()
		inst.FeesPaid = decimal.NewFromFloat(inst.FeesPaid).Sub(fees).Round(2).InexactFloat64()
	}

	sort.Slice(schedule, func(i, j int) bool {
		return schedule[i].Sequence < schedule[j].Sequence
	})
}

func reclaim(remaining *decimal.Decimal, paid float64) decimal.Decimal {
	available := decimal.NewFromFloat(paid).Round(2)
	if available.Sign() <= 0 || remaining.Sign() <= 0 {
		return decimal.Zero
	}

	take := available
	if remaining.LessThan(available) {
		take = *remaining
	}
	*remaining = remaining.Sub(take)
	return take
}

// SplitFor derives reusable split ratios from an applied result. Returns nil
// when the payment was zero.
func SplitFor(result Result, payment float64) *model.SplitRatios {
	total := decimal.NewFromFloat(payment)
	if total.IsZero() {
		return nil
	}

	return &model.SplitRatios{
		Principal: decimal.NewFromFloat(result.PrincipalPaid).Div(total).Round(4).InexactFloat64(),
		Interest:  decimal.NewFromFloat(result.InterestPaid).Div(total).Round(4).InexactFloat64(),
		Fees:      decimal.NewFromFloat(result.FeesPaid).Div(total).Round(4).InexactFloat64(),
	}
}
