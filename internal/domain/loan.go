package domain

import "time"

type InterestType string

const (
	InterestFlat     InterestType = "flat"
	InterestCompound InterestType = "compound"
)

type LoanStatus string

const (
	LoanActive         LoanStatus = "Active"
	LoanPaidOff        LoanStatus = "Paid Off"
	LoanPartialPayment LoanStatus = "Partial Payment"
	LoanMerged         LoanStatus = "Merged"
)

// Loan is one issued credit line. PaidAmount and Status are a materialized
// view of the loan's payment ledger: they are recomputed from the full
// payment set on every mutation and must never be treated as independently
// authored data.
type Loan struct {
	ID        string
	ClientID  string
	CompanyID string

	// BaseAmount is the principal fixed at issuance. SubTotal is the
	// principal basis interest accrues on; it exceeds BaseAmount when the
	// loan absorbed a prior chain's remaining balance.
	BaseAmount         float64
	SubTotal           float64
	PreviousLoanAmount float64

	InterestType InterestType
	MonthlyRate  float64 // percent per month
	LoanTerms    int     // months

	PaidAmount float64
	Status     LoanStatus

	// ParentLoanID links a merged chain: it points at the root of the
	// chain this loan superseded. Nil for standalone loans.
	ParentLoanID *string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

var canonicalLoanTerms = map[int]bool{6: true, 12: true, 18: true, 24: true, 30: true, 36: true, 48: true}

func ValidLoanTerm(months int) bool {
	return canonicalLoanTerms[months]
}

func ValidInterestType(t InterestType) bool {
	return t == InterestFlat || t == InterestCompound
}

// ChainRootID is the id the loan's payoff chain is resolved from: the
// parent link when present, the loan itself otherwise.
func (l *Loan) ChainRootID() string {
	if l.ParentLoanID != nil && *l.ParentLoanID != "" {
		return *l.ParentLoanID
	}
	return l.ID
}
