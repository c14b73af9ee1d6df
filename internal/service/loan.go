package service

import (
	"context"
	"fmt"
	"time"

	"loanbook/internal/domain"
	"loanbook/internal/interest"
	"loanbook/internal/ledger"
	"loanbook/pkg/money"

	"github.com/google/uuid"
)

type LoanRepository interface {
	FindLoan(ctx context.Context, id string) (*domain.Loan, error)
	CreateLoan(ctx context.Context, l *domain.Loan) error
	UpdateLoan(ctx context.Context, l *domain.Loan) error
	DeleteLoan(ctx context.Context, id string) error
	ListLoans(ctx context.Context) ([]domain.Loan, error)
	ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error)
	ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error)
}

type LoanPaymentRepository interface {
	ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error)
	ListPaymentsByLoans(ctx context.Context, loanIDs []string) ([]domain.LoanPayment, error)
}

type LoanClientRepository interface {
	FindClient(ctx context.Context, id string) (*domain.Client, error)
}

type LoanService struct {
	loans    LoanRepository
	payments LoanPaymentRepository
	clients  LoanClientRepository
	resolver *ledger.ChainResolver
	audit    ledger.AuditSink
	cache    ledger.ProfitCache
}

func NewLoanService(loans LoanRepository, payments LoanPaymentRepository, clients LoanClientRepository, resolver *ledger.ChainResolver, audit ledger.AuditSink, cache ledger.ProfitCache) *LoanService {
	return &LoanService{
		loans:    loans,
		payments: payments,
		clients:  clients,
		resolver: resolver,
		audit:    audit,
		cache:    cache,
	}
}

type CreateLoanInput struct {
	ClientID     string
	CompanyID    string
	BaseAmount   float64
	InterestType domain.InterestType
	MonthlyRate  float64
	LoanTerms    int

	// ParentLoanID makes this a merge create: the new loan absorbs the
	// remaining balance of the parent's chain.
	ParentLoanID *string
}

func (s *LoanService) CreateLoan(ctx context.Context, actor domain.Actor, in CreateLoanInput) (*domain.Loan, error) {
	if in.ClientID == "" {
		return nil, domain.Invalid("clientId", "")
	}
	if in.BaseAmount <= 0 {
		return nil, domain.Invalid("baseAmount", "baseAmount must be greater than zero")
	}
	if in.MonthlyRate < 0 {
		return nil, domain.Invalid("monthlyRate", "monthlyRate must not be negative")
	}
	if !domain.ValidLoanTerm(in.LoanTerms) {
		return nil, domain.Invalid("loanTerms", "loanTerms must be one of 6, 12, 18, 24, 30, 36, 48")
	}
	if !domain.ValidInterestType(in.InterestType) {
		return nil, domain.Invalid("interestType", "interestType must be flat or compound")
	}

	if _, err := s.clients.FindClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	now := time.Now()
	loan := &domain.Loan{
		ID:           uuid.NewString(),
		ClientID:     in.ClientID,
		CompanyID:    in.CompanyID,
		BaseAmount:   money.Round2(in.BaseAmount),
		InterestType: in.InterestType,
		MonthlyRate:  in.MonthlyRate,
		LoanTerms:    in.LoanTerms,
		Status:       domain.LoanActive,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	var absorbed *ledger.Chain
	if in.ParentLoanID != nil && *in.ParentLoanID != "" {
		parent, err := s.loans.FindLoan(ctx, *in.ParentLoanID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent loan: %w", err)
		}
		chain, remaining, err := s.chainRemaining(ctx, parent)
		if err != nil {
			return nil, err
		}
		rootID := parent.ChainRootID()
		loan.ParentLoanID = &rootID
		loan.PreviousLoanAmount = remaining
		absorbed = chain
	}

	loan.SubTotal = money.Sum(loan.BaseAmount, loan.PreviousLoanAmount)

	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	// Absorbed loans stop accruing: Merged is terminal and the new loan's
	// sub_total now carries their balance.
	if absorbed != nil {
		for _, id := range absorbed.LoanIDs {
			prior, err := s.loans.FindLoan(ctx, id)
			if err != nil {
				continue
			}
			prior.Status = domain.LoanMerged
			if err := s.loans.UpdateLoan(ctx, prior); err != nil {
				return nil, fmt.Errorf("merge loan %s: %w", id, err)
			}
		}
	}

	// A merge changes the chain's membership, so any cached consolidated
	// profit for the root is now wrong.
	if absorbed != nil {
		s.invalidateProfit(ctx, loan)
	}

	s.record(ctx, actor, "loan created", loan.ID, nil, loan)
	return loan, nil
}

// chainRemaining resolves the chain a parent loan belongs to and reports
// its outstanding balance: projected totals minus payments, floored at 0.
func (s *LoanService) chainRemaining(ctx context.Context, parent *domain.Loan) (*ledger.Chain, float64, error) {
	chain, err := s.resolver.Resolve(ctx, parent)
	if err != nil {
		return nil, 0, err
	}

	var projected float64
	for _, id := range chain.LoanIDs {
		l, err := s.loans.FindLoan(ctx, id)
		if err != nil {
			continue
		}
		projected += interest.ProjectTotal(l.SubTotal, l.MonthlyRate, l.InterestType, l.LoanTerms)
	}

	payments, err := s.payments.ListPaymentsByLoans(ctx, chain.LoanIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("list chain payments: %w", err)
	}
	var paid float64
	for _, p := range payments {
		paid += p.PaidAmount
	}

	remaining := money.Round2(projected - paid)
	if remaining < 0 {
		remaining = 0
	}
	return chain, remaining, nil
}

func (s *LoanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return s.loans.FindLoan(ctx, id)
}

func (s *LoanService) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	return s.loans.ListLoans(ctx)
}

func (s *LoanService) ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error) {
	if _, err := s.clients.FindClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.loans.ListLoansByClient(ctx, clientID)
}

type UpdateLoanInput struct {
	MonthlyRate  *float64
	LoanTerms    *int
	InterestType *domain.InterestType
}

// UpdateLoan changes the projection inputs of a loan and re-derives its
// status against the new projected total.
func (s *LoanService) UpdateLoan(ctx context.Context, actor domain.Actor, id string, in UpdateLoanInput) (*domain.Loan, error) {
	loan, err := s.loans.FindLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *loan

	if in.MonthlyRate != nil {
		if *in.MonthlyRate < 0 {
			return nil, domain.Invalid("monthlyRate", "monthlyRate must not be negative")
		}
		loan.MonthlyRate = *in.MonthlyRate
	}
	if in.LoanTerms != nil {
		if !domain.ValidLoanTerm(*in.LoanTerms) {
			return nil, domain.Invalid("loanTerms", "loanTerms must be one of 6, 12, 18, 24, 30, 36, 48")
		}
		loan.LoanTerms = *in.LoanTerms
	}
	if in.InterestType != nil {
		if !domain.ValidInterestType(*in.InterestType) {
			return nil, domain.Invalid("interestType", "interestType must be flat or compound")
		}
		loan.InterestType = *in.InterestType
	}

	payments, err := s.payments.ListPaymentsByLoan(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	var paid float64
	for _, p := range payments {
		paid += p.PaidAmount
	}
	loan.PaidAmount = money.Round2(paid)
	if loan.Status != domain.LoanMerged {
		total := interest.ProjectTotal(loan.SubTotal, loan.MonthlyRate, loan.InterestType, loan.LoanTerms)
		loan.Status = statusFor(loan.PaidAmount, total)
	}
	now := time.Now()
	loan.UpdatedAt = &now

	if err := s.loans.UpdateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	s.invalidateProfit(ctx, loan)

	s.record(ctx, actor, "loan updated", loan.ID, &before, loan)
	return loan, nil
}

// DeleteLoan removes a loan that no payments reference.
func (s *LoanService) DeleteLoan(ctx context.Context, actor domain.Actor, id string) error {
	loan, err := s.loans.FindLoan(ctx, id)
	if err != nil {
		return err
	}

	payments, err := s.payments.ListPaymentsByLoan(ctx, id)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	if len(payments) > 0 {
		return domain.ErrLoanHasPayments
	}

	if err := s.loans.DeleteLoan(ctx, id); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	s.invalidateProfit(ctx, loan)

	s.record(ctx, actor, "loan deleted", id, loan, nil)
	return nil
}

func (s *LoanService) invalidateProfit(ctx context.Context, loan *domain.Loan) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateProfit(ctx, loan.ChainRootID())
}

func (s *LoanService) record(ctx context.Context, actor domain.Actor, message, loanID string, before, after any) {
	record(ctx, s.audit, actor, message, "loan", loanID, before, after)
}

func statusFor(paid, total float64) domain.LoanStatus {
	switch {
	case paid <= 0:
		return domain.LoanActive
	case paid >= total:
		return domain.LoanPaidOff
	default:
		return domain.LoanPartialPayment
	}
}
