// Package ledger implements the loan payment ledger engine: applying
// payments against a loan's projected payoff, keeping the loan's cached
// paid amount and status in sync with its payment records, and folding
// merged loan chains into consolidated profit figures.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"loanbook/internal/domain"
	"loanbook/internal/interest"
	"loanbook/pkg/money"
)

type LoanStore interface {
	FindLoan(ctx context.Context, id string) (*domain.Loan, error)
	UpdateLoan(ctx context.Context, l *domain.Loan) error
	ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error)
	ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error)
}

type PaymentStore interface {
	FindPayment(ctx context.Context, id string) (*domain.LoanPayment, error)
	CreatePayment(ctx context.Context, p *domain.LoanPayment) error
	UpdatePayment(ctx context.Context, p *domain.LoanPayment) error
	DeletePayment(ctx context.Context, id string) error

	// ListPaymentsByLoan returns the loan's payments sorted by paid date,
	// newest first.
	ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error)
	ListPaymentsByLoans(ctx context.Context, loanIDs []string) ([]domain.LoanPayment, error)
	ListPaymentsByClient(ctx context.Context, clientID string) ([]domain.LoanPayment, error)
}

type ClientStore interface {
	FindClient(ctx context.Context, id string) (*domain.Client, error)
}

// AuditSink receives a structured description of each mutation. Recording
// is best-effort: the engine logs failures and never propagates them.
type AuditSink interface {
	Record(ctx context.Context, e domain.AuditEntry) error
}

// ProfitCache optionally short-circuits chain profit reads. Keys are chain
// root ids so every member of a chain shares one entry.
type ProfitCache interface {
	GetProfit(ctx context.Context, rootID string) (*ChainProfit, bool)
	SetProfit(ctx context.Context, rootID string, p ChainProfit)
	InvalidateProfit(ctx context.Context, rootID string)
}

// ChainProfit is the consolidated result of one payoff chain.
type ChainProfit struct {
	RootID          string  `json:"root_id"`
	TotalBaseAmount float64 `json:"total_base_amount"`
	TotalPaid       float64 `json:"total_paid"`
	TotalProfit     float64 `json:"total_profit"`
}

// PaymentResult is returned from every payment mutation.
type PaymentResult struct {
	Payment   domain.LoanPayment
	TotalLoan float64
	TotalPaid float64
	Remaining float64
}

// LoanPayments is the read-path view for one loan.
type LoanPayments struct {
	Payments []domain.LoanPayment
	Profit   ChainProfit
}

// ClientLedger is the read-path view for one client: payments and chain
// profit keyed by loan id.
type ClientLedger struct {
	Payments map[string][]domain.LoanPayment
	Profit   map[string]ChainProfit
}

// Engine orchestrates payment mutations and ledger reads.
type Engine struct {
	loans    LoanStore
	payments PaymentStore
	clients  ClientStore
	resolver *ChainResolver
	audit    AuditSink
	cache    ProfitCache

	// RejectOverpayment flips the disabled-by-design overpayment check:
	// the business accepts payments above the remaining balance unless
	// this policy is enabled.
	rejectOverpayment bool

	// Mutations against the same loan are serialized in-process; the
	// final recompute from the full payment set remains the cross-process
	// consistency mechanism.
	locks sync.Map // loan id -> *sync.Mutex
}

type EngineOption func(*Engine)

func WithAudit(sink AuditSink) EngineOption {
	return func(e *Engine) { e.audit = sink }
}

func WithProfitCache(cache ProfitCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

func WithRejectOverpayment(reject bool) EngineOption {
	return func(e *Engine) { e.rejectOverpayment = reject }
}

func NewEngine(loans LoanStore, payments PaymentStore, clients ClientStore, opts ...EngineOption) *Engine {
	e := &Engine{
		loans:    loans,
		payments: payments,
		clients:  clients,
		resolver: NewChainResolver(loans),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockLoan(loanID string) func() {
	v, _ := e.locks.LoadOrStore(loanID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AddPaymentInput carries one payment submission. PaidDate defaults to the
// submission time; CheckNumber and PayoffLetter default to blank.
type AddPaymentInput struct {
	LoanID       string
	ClientID     string
	PaidAmount   float64
	PaidDate     *time.Time
	CheckNumber  string
	PayoffLetter string
	CurrentTerm  int
}

// AddPayment records a new payment against a loan, recomputes the loan's
// paid amount and status from the full payment set, and reports the
// remaining balance for the given term. Not idempotent: every successful
// call creates a new payment record.
func (e *Engine) AddPayment(ctx context.Context, actor domain.Actor, in AddPaymentInput) (*PaymentResult, error) {
	if in.LoanID == "" {
		return nil, domain.Invalid("loanId", "")
	}
	if in.ClientID == "" {
		return nil, domain.Invalid("clientId", "")
	}
	if in.PaidAmount <= 0 {
		return nil, domain.Invalid("paidAmount", "paidAmount must be greater than zero")
	}
	if in.CurrentTerm <= 0 {
		return nil, domain.Invalid("currentTerm", "")
	}

	unlock := e.lockLoan(in.LoanID)
	defer unlock()

	loan, err := e.loans.FindLoan(ctx, in.LoanID)
	if err != nil {
		return nil, err
	}
	if _, err := e.clients.FindClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	totalLoan := interest.ProjectTotal(loan.SubTotal, loan.MonthlyRate, loan.InterestType, in.CurrentTerm)

	// Recompute from the ledger rather than trusting the cached field, to
	// tolerate drift from interrupted earlier writes.
	existing, err := e.payments.ListPaymentsByLoan(ctx, in.LoanID)
	if err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", in.LoanID, err)
	}
	alreadyPaid := sumPayments(existing)

	if e.rejectOverpayment && money.Sum(alreadyPaid, in.PaidAmount) > totalLoan {
		return nil, domain.Invalid("paidAmount", "payment exceeds the remaining loan balance")
	}

	paidDate := time.Now()
	if in.PaidDate != nil {
		paidDate = *in.PaidDate
	}

	payment := domain.LoanPayment{
		ID:           uuid.NewString(),
		LoanID:       in.LoanID,
		ClientID:     in.ClientID,
		PaidAmount:   money.Round2(in.PaidAmount),
		PaidDate:     paidDate,
		CheckNumber:  in.CheckNumber,
		PayoffLetter: in.PayoffLetter,
	}
	if err := e.payments.CreatePayment(ctx, &payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	totalPaid := money.Sum(alreadyPaid, payment.PaidAmount)
	if err := e.storeLoanTotals(ctx, loan, totalPaid, totalLoan); err != nil {
		return nil, err
	}

	e.record(ctx, actor, domain.AuditEntry{
		Message:    fmt.Sprintf("Recorded payment of %.2f against loan %s for client %s", payment.PaidAmount, loan.ID, in.ClientID),
		EntityKind: "loan_payment",
		EntityID:   payment.ID,
		After:      snapshot(payment),
	})
	e.invalidateProfit(ctx, loan)

	return &PaymentResult{
		Payment:   payment,
		TotalLoan: totalLoan,
		TotalPaid: totalPaid,
		Remaining: money.Round2(totalLoan - totalPaid),
	}, nil
}

// PaymentUpdate lists the editable payment fields; only non-nil fields
// change.
type PaymentUpdate struct {
	PaidAmount   *float64
	PaidDate     *time.Time
	CheckNumber  *string
	PayoffLetter *string
}

// EditPayment applies a partial update to a payment and re-derives the
// owning loan's totals. When currentTerm is zero the loan's stored term is
// used for the projection.
func (e *Engine) EditPayment(ctx context.Context, actor domain.Actor, paymentID string, upd PaymentUpdate, currentTerm int) (*PaymentResult, error) {
	if paymentID == "" {
		return nil, domain.Invalid("paymentId", "")
	}
	if upd.PaidAmount != nil && *upd.PaidAmount <= 0 {
		return nil, domain.Invalid("paidAmount", "paidAmount must be greater than zero")
	}

	// The first lookup only learns which loan to lock; the payment is
	// re-read under the mutex so the before snapshot and the update see
	// the same row even with concurrent edits.
	payment, err := e.payments.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockLoan(payment.LoanID)
	defer unlock()

	payment, err = e.payments.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	loan, err := e.loans.FindLoan(ctx, payment.LoanID)
	if err != nil {
		return nil, err
	}

	term := currentTerm
	if term <= 0 {
		term = loan.LoanTerms
	}
	totalLoan := interest.ProjectTotal(loan.SubTotal, loan.MonthlyRate, loan.InterestType, term)

	existing, err := e.payments.ListPaymentsByLoan(ctx, payment.LoanID)
	if err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", payment.LoanID, err)
	}
	var othersPaid float64
	for _, p := range existing {
		if p.ID != payment.ID {
			othersPaid = money.Sum(othersPaid, p.PaidAmount)
		}
	}

	before := snapshot(*payment)

	if upd.PaidAmount != nil {
		payment.PaidAmount = money.Round2(*upd.PaidAmount)
	}
	if upd.PaidDate != nil {
		payment.PaidDate = *upd.PaidDate
	}
	if upd.CheckNumber != nil {
		payment.CheckNumber = *upd.CheckNumber
	}
	if upd.PayoffLetter != nil {
		payment.PayoffLetter = *upd.PayoffLetter
	}

	if e.rejectOverpayment && money.Sum(othersPaid, payment.PaidAmount) > totalLoan {
		return nil, domain.Invalid("paidAmount", "payment exceeds the remaining loan balance")
	}

	if err := e.payments.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("update payment %s: %w", paymentID, err)
	}

	totalPaid := money.Sum(othersPaid, payment.PaidAmount)
	if err := e.storeLoanTotals(ctx, loan, totalPaid, totalLoan); err != nil {
		return nil, err
	}

	e.record(ctx, actor, domain.AuditEntry{
		Message:    fmt.Sprintf("Edited payment %s on loan %s", payment.ID, loan.ID),
		EntityKind: "loan_payment",
		EntityID:   payment.ID,
		Before:     before,
		After:      snapshot(*payment),
	})
	e.invalidateProfit(ctx, loan)

	return &PaymentResult{
		Payment:   *payment,
		TotalLoan: totalLoan,
		TotalPaid: totalPaid,
		Remaining: money.Round2(totalLoan - totalPaid),
	}, nil
}

// DeletePayment removes a payment. The owning loan's paid amount is
// decremented (floored at zero) and its status reverts to Active once no
// payments remain; when the loan itself is gone the payment is still
// deleted.
func (e *Engine) DeletePayment(ctx context.Context, actor domain.Actor, paymentID string) error {
	if paymentID == "" {
		return domain.Invalid("paymentId", "")
	}

	payment, err := e.payments.FindPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	unlock := e.lockLoan(payment.LoanID)
	defer unlock()

	loan, err := e.loans.FindLoan(ctx, payment.LoanID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLoanNotFound):
		loan = nil // orphaned payment, delete it anyway
	default:
		return err
	}

	if err := e.payments.DeletePayment(ctx, paymentID); err != nil {
		return fmt.Errorf("delete payment %s: %w", paymentID, err)
	}

	if loan != nil {
		loan.PaidAmount = money.Round2(loan.PaidAmount - payment.PaidAmount)
		if loan.PaidAmount < 0 {
			loan.PaidAmount = 0
		}

		remaining, err := e.payments.ListPaymentsByLoan(ctx, payment.LoanID)
		if err != nil {
			return fmt.Errorf("list payments for loan %s: %w", payment.LoanID, err)
		}
		if len(remaining) == 0 && loan.Status != domain.LoanMerged {
			loan.Status = domain.LoanActive
		}

		if err := e.loans.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan %s: %w", loan.ID, err)
		}
		e.invalidateProfit(ctx, loan)
	}

	e.record(ctx, actor, domain.AuditEntry{
		Message:    fmt.Sprintf("Deleted payment %s from loan %s", payment.ID, payment.LoanID),
		EntityKind: "loan_payment",
		EntityID:   payment.ID,
		Before:     snapshot(*payment),
	})

	return nil
}

// GetPayments returns a loan's own payments (newest first) together with
// the consolidated profit of its full payoff chain.
func (e *Engine) GetPayments(ctx context.Context, loanID string) (*LoanPayments, error) {
	if loanID == "" {
		return nil, domain.Invalid("loanId", "")
	}

	loan, err := e.loans.FindLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := e.payments.ListPaymentsByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", loanID, err)
	}

	profit, err := e.chainProfit(ctx, loan)
	if err != nil {
		return nil, err
	}

	return &LoanPayments{Payments: payments, Profit: *profit}, nil
}

// GetAllPaymentsForClient resolves every loan the client owns, computing
// per-loan chain profit and grouping the client's payments by loan.
// Sibling loans in one chain repeat the resolution; correctness over
// caching, per the read-path contract.
func (e *Engine) GetAllPaymentsForClient(ctx context.Context, clientID string) (*ClientLedger, error) {
	if clientID == "" {
		return nil, domain.Invalid("clientId", "")
	}
	if _, err := e.clients.FindClient(ctx, clientID); err != nil {
		return nil, err
	}

	loans, err := e.loans.ListLoansByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list loans for client %s: %w", clientID, err)
	}

	out := &ClientLedger{
		Payments: make(map[string][]domain.LoanPayment),
		Profit:   make(map[string]ChainProfit),
	}

	for i := range loans {
		profit, err := e.chainProfit(ctx, &loans[i])
		if err != nil {
			return nil, err
		}
		out.Profit[loans[i].ID] = *profit
	}

	payments, err := e.payments.ListPaymentsByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list payments for client %s: %w", clientID, err)
	}
	for _, p := range payments {
		out.Payments[p.LoanID] = append(out.Payments[p.LoanID], p)
	}

	return out, nil
}

// GetLastPaymentDate returns the most recent paid date for a loan, or nil
// when the loan has no payments.
func (e *Engine) GetLastPaymentDate(ctx context.Context, loanID string) (*time.Time, error) {
	if loanID == "" {
		return nil, domain.Invalid("loanId", "")
	}
	payments, err := e.payments.ListPaymentsByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", loanID, err)
	}
	if len(payments) == 0 {
		return nil, nil
	}
	d := payments[0].PaidDate
	return &d, nil
}

// chainProfit resolves the loan's chain and folds every chain member's
// payments into one consolidated figure. Profit is floored at zero: a
// chain paid less than its principal reports no loss.
func (e *Engine) chainProfit(ctx context.Context, loan *domain.Loan) (*ChainProfit, error) {
	rootID := loan.ChainRootID()

	if e.cache != nil {
		if cached, ok := e.cache.GetProfit(ctx, rootID); ok {
			return cached, nil
		}
	}

	chain, err := e.resolver.Resolve(ctx, loan)
	if err != nil {
		return nil, err
	}

	payments, err := e.payments.ListPaymentsByLoans(ctx, chain.LoanIDs)
	if err != nil {
		return nil, fmt.Errorf("list chain payments from %s: %w", rootID, err)
	}
	totalPaid := sumPayments(payments)

	profit := money.Round2(totalPaid - chain.TotalBaseAmount)
	if profit < 0 {
		profit = 0
	}

	result := &ChainProfit{
		RootID:          chain.RootID,
		TotalBaseAmount: chain.TotalBaseAmount,
		TotalPaid:       totalPaid,
		TotalProfit:     profit,
	}
	if e.cache != nil {
		e.cache.SetProfit(ctx, rootID, *result)
	}
	return result, nil
}

// storeLoanTotals persists the recomputed materialized view on the loan.
// Merged is terminal and never overwritten by the derived status.
func (e *Engine) storeLoanTotals(ctx context.Context, loan *domain.Loan, totalPaid, totalLoan float64) error {
	loan.PaidAmount = totalPaid
	if loan.Status != domain.LoanMerged {
		loan.Status = statusFor(totalPaid, totalLoan)
	}
	if err := e.loans.UpdateLoan(ctx, loan); err != nil {
		return fmt.Errorf("update loan %s: %w", loan.ID, err)
	}
	return nil
}

func statusFor(paid, totalLoan float64) domain.LoanStatus {
	switch {
	case paid <= 0:
		return domain.LoanActive
	case paid >= totalLoan:
		return domain.LoanPaidOff
	default:
		return domain.LoanPartialPayment
	}
}

func sumPayments(payments []domain.LoanPayment) float64 {
	var total float64
	for _, p := range payments {
		total = money.Sum(total, p.PaidAmount)
	}
	return total
}

func (e *Engine) record(ctx context.Context, actor domain.Actor, entry domain.AuditEntry) {
	if e.audit == nil {
		return
	}
	entry.ActorID = actor.ID
	entry.ActorRole = actor.Role
	if err := e.audit.Record(ctx, entry); err != nil {
		log.Printf("[LEDGER] audit record failed for %s %s: %v", entry.EntityKind, entry.EntityID, err)
	}
}

func (e *Engine) invalidateProfit(ctx context.Context, loan *domain.Loan) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidateProfit(ctx, loan.ChainRootID())
}

func snapshot(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
