package model

import (
	"time"
)

// LoanStatus tracks the lifecycle of a loan.
type LoanStatus string

// Loan statuses.
const (
	LoanActive LoanStatus = "active"
	LoanClosed LoanStatus = "closed"
)

// Loan is the minimal loan master record the reconciliation engine needs:
// enough to run the payment waterfall and detect closure.
type Loan struct {
	StartDate    time.Time
	ID           string
	BorrowerID   string
	BorrowerName string
	Status       LoanStatus
	Principal    float64
}

// Installment is one row of a loan's amortization schedule. Due and paid
// amounts are tracked separately per component so the payment waterfall can
// allocate incoming repayments.
type Installment struct {
	DueDate       time.Time
	LoanID        string
	Sequence      int
	PrincipalDue  float64
	InterestDue   float64
	FeesDue       float64
	PrincipalPaid float64
	InterestPaid  float64
	FeesPaid      float64
}

// Outstanding returns the unpaid remainder of the installment.
func (i *Installment) Outstanding() float64 {
	return (i.PrincipalDue - i.PrincipalPaid) +
		(i.InterestDue - i.InterestPaid) +
		(i.FeesDue - i.FeesPaid)
}

// Settled reports whether every component of the installment is fully paid.
func (i *Installment) Settled() bool {
	return i.Outstanding() < 0.005
}

// Investor is an investor master record with a running capital balance that
// reconciliation-created capital movements must keep in step.
type Investor struct {
	ID             string
	Name           string
	Email          string
	CapitalBalance float64
}
