package service

import (
	"context"
	"sort"
	"sync"

	"loanbook/internal/domain"
)

// memStore backs the service tests with map-based repositories.
type memStore struct {
	mu       sync.Mutex
	loans    map[string]domain.Loan
	payments map[string]domain.LoanPayment
	clients  map[string]domain.Client
	audits   []domain.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		loans:    make(map[string]domain.Loan),
		payments: make(map[string]domain.LoanPayment),
		clients:  make(map[string]domain.Client),
	}
}

func (m *memStore) FindLoan(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	cp := l
	return &cp, nil
}

func (m *memStore) CreateLoan(ctx context.Context, l *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[l.ID] = *l
	return nil
}

func (m *memStore) UpdateLoan(ctx context.Context, l *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[l.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	m.loans[l.ID] = *l
	return nil
}

func (m *memStore) DeleteLoan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[id]; !ok {
		return domain.ErrLoanNotFound
	}
	delete(m.loans, id)
	return nil
}

func (m *memStore) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Loan
	for _, l := range m.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Loan
	for _, l := range m.loans {
		if l.ClientID == clientID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	var out []domain.Loan
	for _, l := range m.loans {
		if l.ParentLoanID != nil && wanted[*l.ParentLoanID] {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountLoansByClient(ctx context.Context, clientID string) (int64, error) {
	loans, _ := m.ListLoansByClient(ctx, clientID)
	return int64(len(loans)), nil
}

func (m *memStore) ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LoanPayment
	for _, p := range m.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListPaymentsByLoans(ctx context.Context, loanIDs []string) ([]domain.LoanPayment, error) {
	var out []domain.LoanPayment
	for _, id := range loanIDs {
		ps, _ := m.ListPaymentsByLoan(ctx, id)
		out = append(out, ps...)
	}
	return out, nil
}

func (m *memStore) FindClient(ctx context.Context, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	cp := c
	return &cp, nil
}

func (m *memStore) CreateClient(ctx context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = *c
	return nil
}

func (m *memStore) UpdateClient(ctx context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return domain.ErrClientNotFound
	}
	m.clients[c.ID] = *c
	return nil
}

func (m *memStore) DeleteClient(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return domain.ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memStore) ListClients(ctx context.Context) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Record(ctx context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}
