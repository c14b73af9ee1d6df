package domain

import "time"

// LoanPayment is one payment event. The payment records are the source of
// truth for a loan's running totals.
type LoanPayment struct {
	ID       string
	LoanID   string
	ClientID string

	PaidAmount float64
	PaidDate   time.Time

	// Opaque references supplied by the back office.
	CheckNumber  string
	PayoffLetter string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
