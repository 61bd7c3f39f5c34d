package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/loanbook/internal/common"
	"github.com/ledgerline/loanbook/internal/model"
)

// CreateLoan inserts a loan master record.
func (s *queries) CreateLoan(ctx context.Context, loan *model.Loan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if loan == nil {
		return fmt.Errorf("%w: loan", ErrNilParameter)
	}
	if err := validateString(loan.ID, "loan.ID"); err != nil {
		return err
	}

	status := loan.Status
	if status == "" {
		status = model.LoanActive
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loans (id, borrower_id, borrower_name, principal, status, start_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, loan.ID, loan.BorrowerID, nullString(loan.BorrowerName), loan.Principal, status, loan.StartDate)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves one loan by id.
func (s *queries) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var loan model.Loan
	var borrowerName sql.NullString
	var startDate sql.NullTime
	err := s.q.QueryRowContext(ctx, `
		SELECT id, borrower_id, borrower_name, principal, status, start_date
		FROM loans WHERE id = ?
	`, id).Scan(&loan.ID, &loan.BorrowerID, &borrowerName, &loan.Principal, &loan.Status, &startDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	loan.BorrowerName = borrowerName.String
	loan.StartDate = startDate.Time
	return &loan, nil
}

// UpdateLoanStatus transitions a loan between active and closed.
func (s *queries) UpdateLoanStatus(ctx context.Context, id string, status model.LoanStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, "UPDATE loans SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: loan %s", common.ErrNotFound, id)
	}
	return nil
}

// CreateInstallment inserts one schedule row for a loan.
func (s *queries) CreateInstallment(ctx context.Context, inst *model.Installment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if inst == nil {
		return fmt.Errorf("%w: installment", ErrNilParameter)
	}
	if err := validateString(inst.LoanID, "installment.LoanID"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loan_schedule (
			loan_id, sequence, due_date,
			principal_due, interest_due, fees_due,
			principal_paid, interest_paid, fees_paid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inst.LoanID, inst.Sequence, inst.DueDate,
		inst.PrincipalDue, inst.InterestDue, inst.FeesDue,
		inst.PrincipalPaid, inst.InterestPaid, inst.FeesPaid)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

// GetSchedule returns a loan's amortization schedule in sequence order.
func (s *queries) GetSchedule(ctx context.Context, loanID string) ([]model.Installment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(loanID, "loanID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT loan_id, sequence, due_date,
		       principal_due, interest_due, fees_due,
		       principal_paid, interest_paid, fees_paid
		FROM loan_schedule
		WHERE loan_id = ?
		ORDER BY sequence ASC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedule []model.Installment
	for rows.Next() {
		var inst model.Installment
		if err := rows.Scan(
			&inst.LoanID, &inst.Sequence, &inst.DueDate,
			&inst.PrincipalDue, &inst.InterestDue, &inst.FeesDue,
			&inst.PrincipalPaid, &inst.InterestPaid, &inst.FeesPaid,
		); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		schedule = append(schedule, inst)
	}
	return schedule, rows.Err()
}

// UpdateInstallmentPaid writes back the paid components of one installment.
func (s *queries) UpdateInstallmentPaid(ctx context.Context, inst *model.Installment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if inst == nil {
		return fmt.Errorf("%w: installment", ErrNilParameter)
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE loan_schedule
		SET principal_paid = ?, interest_paid = ?, fees_paid = ?
		WHERE loan_id = ? AND sequence = ?
	`, inst.PrincipalPaid, inst.InterestPaid, inst.FeesPaid, inst.LoanID, inst.Sequence)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: installment %s/%d", common.ErrNotFound, inst.LoanID, inst.Sequence)
	}
	return nil
}

// CreateInvestor inserts an investor master record.
func (s *queries) CreateInvestor(ctx context.Context, investor *model.Investor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if investor == nil {
		return fmt.Errorf("%w: investor", ErrNilParameter)
	}
	if err := validateString(investor.ID, "investor.ID"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO investors (id, name, email, capital_balance)
		VALUES (?, ?, ?, ?)
	`, investor.ID, investor.Name, nullString(investor.Email), investor.CapitalBalance)
	if err != nil {
		return fmt.Errorf("failed to create investor: %w", err)
	}
	return nil
}

// GetInvestor retrieves one investor by id.
func (s *queries) GetInvestor(ctx context.Context, id string) (*model.Investor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var investor model.Investor
	var email sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, capital_balance FROM investors WHERE id = ?
	`, id).Scan(&investor.ID, &investor.Name, &email, &investor.CapitalBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: investor %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get investor: %w", err)
	}
	investor.Email = email.String
	return &investor, nil
}

// AdjustInvestorBalance applies a signed delta to an investor's running
// capital balance.
func (s *queries) AdjustInvestorBalance(ctx context.Context, id string, delta float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		"UPDATE investors SET capital_balance = capital_balance + ? WHERE id = ?",
		delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust investor balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: investor %s", common.ErrNotFound, id)
	}
	return nil
}

// CreateCounterparty inserts a counterparty contact.
func (s *queries) CreateCounterparty(ctx context.Context, c *model.Counterparty) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: counterparty", ErrNilParameter)
	}
	if err := validateString(c.ID, "counterparty.ID"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO counterparties (id, name, legal_name, email, owner_type, owner_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, nullString(c.LegalName), nullString(c.Email), c.OwnerType, c.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to create counterparty: %w", err)
	}
	return nil
}

// GetCounterparties returns all counterparty contacts ordered by name.
func (s *queries) GetCounterparties(ctx context.Context) ([]model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, legal_name, email, owner_type, owner_id
		FROM counterparties
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get counterparties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counterparties []model.Counterparty
	for rows.Next() {
		var c model.Counterparty
		var legalName, email sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &legalName, &email, &c.OwnerType, &c.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		c.LegalName = legalName.String
		c.Email = email.String
		counterparties = append(counterparties, c)
	}
	return counterparties, rows.Err()
}
