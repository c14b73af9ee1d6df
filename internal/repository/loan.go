package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"loanbook/internal/domain"
)

const loanColumns = `id, client_id, company_id, base_amount, sub_total, previous_loan_amount, interest_type, monthly_rate, loan_terms, paid_amount, status, parent_loan_id, created_at, updated_at`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) FindLoan(ctx context.Context, id string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	loan, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, l *domain.Loan) error {
	query := `
		INSERT INTO loans (id, client_id, company_id, base_amount, sub_total, previous_loan_amount, interest_type, monthly_rate, loan_terms, paid_amount, status, parent_loan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID,
		l.ClientID,
		nullString(l.CompanyID),
		l.BaseAmount,
		l.SubTotal,
		l.PreviousLoanAmount,
		string(l.InterestType),
		l.MonthlyRate,
		l.LoanTerms,
		l.PaidAmount,
		string(l.Status),
		l.ParentLoanID,
	)
	return err
}

func (r *LoanRepository) UpdateLoan(ctx context.Context, l *domain.Loan) error {
	query := `
		UPDATE loans
		SET sub_total = $2,
		    previous_loan_amount = $3,
		    interest_type = $4,
		    monthly_rate = $5,
		    loan_terms = $6,
		    paid_amount = $7,
		    status = $8,
		    parent_loan_id = $9,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		l.ID,
		l.SubTotal,
		l.PreviousLoanAmount,
		string(l.InterestType),
		l.MonthlyRate,
		l.LoanTerms,
		l.PaidAmount,
		string(l.Status),
		l.ParentLoanID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func (r *LoanRepository) DeleteLoan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func (r *LoanRepository) ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE client_id = $1 ORDER BY created_at DESC`
	return r.queryLoans(ctx, query, clientID)
}

func (r *LoanRepository) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY created_at DESC`
	return r.queryLoans(ctx, query)
}

// ListLoansByParents returns every loan whose parent link points at one of
// the given ids. The IN clause is built with positional placeholders, so
// an empty input short-circuits.
func (r *LoanRepository) ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(parentIDs))
	args := make([]any, len(parentIDs))
	for i, id := range parentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT ` + loanColumns + ` FROM loans WHERE parent_loan_id IN (` + strings.Join(placeholders, ", ") + `)`
	return r.queryLoans(ctx, query, args...)
}

func (r *LoanRepository) CountLoansByClient(ctx context.Context, clientID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE client_id = $1`, clientID).Scan(&n)
	return n, err
}

func (r *LoanRepository) queryLoans(ctx context.Context, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*domain.Loan, error) {
	var (
		l            domain.Loan
		companyID    sql.NullString
		interestType string
		status       string
		parentLoanID sql.NullString
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	if err := row.Scan(
		&l.ID,
		&l.ClientID,
		&companyID,
		&l.BaseAmount,
		&l.SubTotal,
		&l.PreviousLoanAmount,
		&interestType,
		&l.MonthlyRate,
		&l.LoanTerms,
		&l.PaidAmount,
		&status,
		&parentLoanID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	l.InterestType = domain.InterestType(interestType)
	l.Status = domain.LoanStatus(status)
	if companyID.Valid {
		l.CompanyID = companyID.String
	}
	if parentLoanID.Valid {
		v := parentLoanID.String
		l.ParentLoanID = &v
	}
	if createdAt.Valid {
		l.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		l.UpdatedAt = &updatedAt.Time
	}

	return &l, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
