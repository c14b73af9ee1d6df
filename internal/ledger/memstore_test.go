package ledger

import (
	"context"
	"sort"

	"loanbook/internal/domain"
)

// memStore is an in-memory stand-in for the SQL repositories, enough to
// drive the engine in tests.
type memStore struct {
	loans    map[string]*domain.Loan
	payments map[string]*domain.LoanPayment
	clients  map[string]*domain.Client
	audits   []domain.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		loans:    make(map[string]*domain.Loan),
		payments: make(map[string]*domain.LoanPayment),
		clients:  make(map[string]*domain.Client),
	}
}

func (m *memStore) putLoan(l domain.Loan) *domain.Loan {
	cp := l
	m.loans[l.ID] = &cp
	return &cp
}

func (m *memStore) putClient(c domain.Client) {
	cp := c
	m.clients[c.ID] = &cp
}

func (m *memStore) FindLoan(ctx context.Context, id string) (*domain.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) UpdateLoan(ctx context.Context, l *domain.Loan) error {
	if _, ok := m.loans[l.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	cp := *l
	m.loans[l.ID] = &cp
	return nil
}

func (m *memStore) ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error) {
	var out []domain.Loan
	for _, l := range m.loans {
		if l.ClientID == clientID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error) {
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []domain.Loan
	for _, l := range m.loans {
		if l.ParentLoanID != nil && parents[*l.ParentLoanID] {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindPayment(ctx context.Context, id string) (*domain.LoanPayment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *domain.LoanPayment) error {
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) UpdatePayment(ctx context.Context, p *domain.LoanPayment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePayment(ctx context.Context, id string) error {
	delete(m.payments, id)
	return nil
}

func (m *memStore) ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	var out []domain.LoanPayment
	for _, p := range m.payments {
		if p.LoanID == loanID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidDate.After(out[j].PaidDate) })
	return out, nil
}

func (m *memStore) ListPaymentsByLoans(ctx context.Context, loanIDs []string) ([]domain.LoanPayment, error) {
	ids := make(map[string]bool, len(loanIDs))
	for _, id := range loanIDs {
		ids[id] = true
	}
	var out []domain.LoanPayment
	for _, p := range m.payments {
		if ids[p.LoanID] {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidDate.After(out[j].PaidDate) })
	return out, nil
}

func (m *memStore) ListPaymentsByClient(ctx context.Context, clientID string) ([]domain.LoanPayment, error) {
	var out []domain.LoanPayment
	for _, p := range m.payments {
		if p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidDate.After(out[j].PaidDate) })
	return out, nil
}

func (m *memStore) FindClient(ctx context.Context, id string) (*domain.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Record(ctx context.Context, e domain.AuditEntry) error {
	m.audits = append(m.audits, e)
	return nil
}
