package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"loanbook/internal/domain"
)

const paymentColumns = `id, loan_id, client_id, paid_amount, paid_date, check_number, payoff_letter, created_at, updated_at`

// LedgerFilter narrows payment listings for the export path.
type LedgerFilter struct {
	LoanID       *string
	ClientID     *string
	PaidFromDate *time.Time
	PaidToDate   *time.Time
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) FindPayment(ctx context.Context, id string) (*domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *domain.LoanPayment) error {
	query := `
		INSERT INTO loan_payments (id, loan_id, client_id, paid_amount, paid_date, check_number, payoff_letter, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.LoanID,
		p.ClientID,
		p.PaidAmount,
		p.PaidDate,
		p.CheckNumber,
		p.PayoffLetter,
	)
	return err
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *domain.LoanPayment) error {
	query := `
		UPDATE loan_payments
		SET paid_amount = $2,
		    paid_date = $3,
		    check_number = $4,
		    payoff_letter = $5,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, p.ID, p.PaidAmount, p.PaidDate, p.CheckNumber, p.PayoffLetter)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) DeletePayment(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM loan_payments WHERE id = $1`, id)
	return err
}

func (r *PaymentRepository) ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE loan_id = $1 ORDER BY paid_date DESC`
	return r.queryPayments(ctx, query, loanID)
}

func (r *PaymentRepository) ListPaymentsByLoans(ctx context.Context, loanIDs []string) ([]domain.LoanPayment, error) {
	if len(loanIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(loanIDs))
	args := make([]any, len(loanIDs))
	for i, id := range loanIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE loan_id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY paid_date DESC`
	return r.queryPayments(ctx, query, args...)
}

func (r *PaymentRepository) ListPaymentsByClient(ctx context.Context, clientID string) ([]domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE client_id = $1 ORDER BY paid_date DESC`
	return r.queryPayments(ctx, query, clientID)
}

// List returns payments matching the export filter, oldest first, the
// order the back office expects ledger exports in.
func (r *PaymentRepository) List(ctx context.Context, f LedgerFilter) ([]domain.LoanPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE ` + strings.Join(filterClauses(&f, 1), " AND ") + ` ORDER BY paid_date ASC`
	return r.queryPayments(ctx, query, filterArgs(&f)...)
}

func (r *PaymentRepository) HasMoreThan(ctx context.Context, limit int64, f LedgerFilter) (bool, error) {
	query := `SELECT COUNT(*) > $1 FROM loan_payments WHERE ` + strings.Join(filterClauses(&f, 2), " AND ")
	args := append([]any{limit}, filterArgs(&f)...)

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}

func filterClauses(f *LedgerFilter, firstArg int) []string {
	clauses := []string{"1=1"}
	i := firstArg
	if f.LoanID != nil && *f.LoanID != "" {
		clauses = append(clauses, fmt.Sprintf("loan_id = $%d", i))
		i++
	}
	if f.ClientID != nil && *f.ClientID != "" {
		clauses = append(clauses, fmt.Sprintf("client_id = $%d", i))
		i++
	}
	if f.PaidFromDate != nil {
		clauses = append(clauses, fmt.Sprintf("paid_date >= $%d", i))
		i++
	}
	if f.PaidToDate != nil {
		clauses = append(clauses, fmt.Sprintf("paid_date <= $%d", i))
		i++
	}
	return clauses
}

func filterArgs(f *LedgerFilter) []any {
	var args []any
	if f.LoanID != nil && *f.LoanID != "" {
		args = append(args, *f.LoanID)
	}
	if f.ClientID != nil && *f.ClientID != "" {
		args = append(args, *f.ClientID)
	}
	if f.PaidFromDate != nil {
		args = append(args, *f.PaidFromDate)
	}
	if f.PaidToDate != nil {
		args = append(args, *f.PaidToDate)
	}
	return args
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]domain.LoanPayment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoanPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanPayment(row rowScanner) (*domain.LoanPayment, error) {
	var (
		p            domain.LoanPayment
		checkNumber  sql.NullString
		payoffLetter sql.NullString
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	if err := row.Scan(
		&p.ID,
		&p.LoanID,
		&p.ClientID,
		&p.PaidAmount,
		&p.PaidDate,
		&checkNumber,
		&payoffLetter,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if checkNumber.Valid {
		p.CheckNumber = checkNumber.String
	}
	if payoffLetter.Valid {
		p.PayoffLetter = payoffLetter.String
	}
	if createdAt.Valid {
		p.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}

	return &p, nil
}
