package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanbook/internal/domain"
	"loanbook/internal/ledger"
)

func newLoanService(store *memStore) *LoanService {
	return NewLoanService(store, store, store, ledger.NewChainResolver(store), store, nil)
}

type memProfitCache struct {
	entries map[string]ledger.ChainProfit
}

func newMemProfitCache() *memProfitCache {
	return &memProfitCache{entries: make(map[string]ledger.ChainProfit)}
}

func (c *memProfitCache) GetProfit(_ context.Context, rootID string) (*ledger.ChainProfit, bool) {
	p, ok := c.entries[rootID]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *memProfitCache) SetProfit(_ context.Context, rootID string, p ledger.ChainProfit) {
	c.entries[rootID] = p
}

func (c *memProfitCache) InvalidateProfit(_ context.Context, rootID string) {
	delete(c.entries, rootID)
}

func seedClient(store *memStore, id string) {
	store.clients[id] = domain.Client{ID: id, FirstName: "Ann", LastName: "Lee"}
}

var testActor = domain.Actor{ID: 1, Role: "manager"}

func TestCreateLoan(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	loan, err := svc.CreateLoan(context.Background(), testActor, CreateLoanInput{
		ClientID:     "c1",
		BaseAmount:   1000,
		InterestType: domain.InterestFlat,
		MonthlyRate:  5,
		LoanTerms:    6,
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	if loan.SubTotal != 1000 {
		t.Errorf("SubTotal = %v, want 1000", loan.SubTotal)
	}
	if loan.Status != domain.LoanActive {
		t.Errorf("Status = %q, want %q", loan.Status, domain.LoanActive)
	}
	if loan.ParentLoanID != nil {
		t.Errorf("ParentLoanID = %v, want nil", *loan.ParentLoanID)
	}
	if _, ok := store.loans[loan.ID]; !ok {
		t.Error("loan not persisted")
	}
	if len(store.audits) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(store.audits))
	}
	if store.audits[0].EntityKind != "loan" || store.audits[0].EntityID != loan.ID {
		t.Errorf("audit entry = %+v", store.audits[0])
	}
}

func TestCreateLoanValidation(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	cases := []struct {
		name  string
		in    CreateLoanInput
		field string
	}{
		{"missing client", CreateLoanInput{BaseAmount: 100, InterestType: domain.InterestFlat, MonthlyRate: 1, LoanTerms: 6}, "clientId"},
		{"zero principal", CreateLoanInput{ClientID: "c1", InterestType: domain.InterestFlat, MonthlyRate: 1, LoanTerms: 6}, "baseAmount"},
		{"negative rate", CreateLoanInput{ClientID: "c1", BaseAmount: 100, InterestType: domain.InterestFlat, MonthlyRate: -1, LoanTerms: 6}, "monthlyRate"},
		{"off-grid term", CreateLoanInput{ClientID: "c1", BaseAmount: 100, InterestType: domain.InterestFlat, MonthlyRate: 1, LoanTerms: 7}, "loanTerms"},
		{"unknown interest type", CreateLoanInput{ClientID: "c1", BaseAmount: 100, InterestType: "weekly", MonthlyRate: 1, LoanTerms: 6}, "interestType"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateLoan(context.Background(), testActor, tc.in)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestCreateLoanUnknownClient(t *testing.T) {
	store := newMemStore()
	svc := newLoanService(store)

	_, err := svc.CreateLoan(context.Background(), testActor, CreateLoanInput{
		ClientID: "ghost", BaseAmount: 100, InterestType: domain.InterestFlat, MonthlyRate: 1, LoanTerms: 6,
	})
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestCreateLoanMerge(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	// prior loan: 1000 flat at 5%/mo over 6 months projects to 1300
	store.loans["l1"] = domain.Loan{
		ID: "l1", ClientID: "c1",
		BaseAmount: 1000, SubTotal: 1000,
		InterestType: domain.InterestFlat, MonthlyRate: 5, LoanTerms: 6,
		PaidAmount: 300, Status: domain.LoanPartialPayment,
	}
	store.payments["p1"] = domain.LoanPayment{ID: "p1", LoanID: "l1", ClientID: "c1", PaidAmount: 300, PaidDate: time.Now()}

	loan, err := svc.CreateLoan(context.Background(), testActor, CreateLoanInput{
		ClientID:     "c1",
		BaseAmount:   500,
		InterestType: domain.InterestFlat,
		MonthlyRate:  5,
		LoanTerms:    12,
		ParentLoanID: strPtr("l1"),
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	if loan.PreviousLoanAmount != 1000 {
		t.Errorf("PreviousLoanAmount = %v, want 1000", loan.PreviousLoanAmount)
	}
	if loan.SubTotal != 1500 {
		t.Errorf("SubTotal = %v, want 1500", loan.SubTotal)
	}
	if loan.ParentLoanID == nil || *loan.ParentLoanID != "l1" {
		t.Errorf("ParentLoanID = %v, want l1", loan.ParentLoanID)
	}

	absorbed := store.loans["l1"]
	if absorbed.Status != domain.LoanMerged {
		t.Errorf("absorbed status = %q, want %q", absorbed.Status, domain.LoanMerged)
	}
}

func TestCreateLoanMergeInvalidatesProfitCache(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	cache := newMemProfitCache()
	svc := NewLoanService(store, store, store, ledger.NewChainResolver(store), store, cache)

	store.loans["l1"] = domain.Loan{
		ID: "l1", ClientID: "c1",
		BaseAmount: 1000, SubTotal: 1000,
		InterestType: domain.InterestFlat, MonthlyRate: 5, LoanTerms: 6,
		PaidAmount: 200, Status: domain.LoanPartialPayment,
	}
	store.payments["p1"] = domain.LoanPayment{ID: "p1", LoanID: "l1", ClientID: "c1", PaidAmount: 200, PaidDate: time.Now()}

	// a prior consolidated read cached the chain before the merge
	cache.SetProfit(context.Background(), "l1", ledger.ChainProfit{
		RootID: "l1", TotalBaseAmount: 1000, TotalPaid: 200, TotalProfit: 200,
	})

	_, err := svc.CreateLoan(context.Background(), testActor, CreateLoanInput{
		ClientID:     "c1",
		BaseAmount:   500,
		InterestType: domain.InterestFlat,
		MonthlyRate:  5,
		LoanTerms:    6,
		ParentLoanID: strPtr("l1"),
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	// the stale entry would report the chain's base as 1000 instead of
	// 1500 until the TTL expired
	if _, ok := cache.GetProfit(context.Background(), "l1"); ok {
		t.Error("chain root profit still cached after merge create")
	}
}

func TestDeleteLoanInvalidatesProfitCache(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	cache := newMemProfitCache()
	svc := NewLoanService(store, store, store, ledger.NewChainResolver(store), store, cache)

	store.loans["l1"] = domain.Loan{ID: "l1", ClientID: "c1", BaseAmount: 1000, SubTotal: 1000, InterestType: domain.InterestFlat, LoanTerms: 6, Status: domain.LoanMerged}
	store.loans["l2"] = domain.Loan{ID: "l2", ClientID: "c1", ParentLoanID: strPtr("l1"), BaseAmount: 500, SubTotal: 1800, InterestType: domain.InterestFlat, LoanTerms: 6, Status: domain.LoanActive}
	cache.SetProfit(context.Background(), "l1", ledger.ChainProfit{RootID: "l1", TotalBaseAmount: 1500})

	if err := svc.DeleteLoan(context.Background(), testActor, "l2"); err != nil {
		t.Fatalf("DeleteLoan: %v", err)
	}

	if _, ok := cache.GetProfit(context.Background(), "l1"); ok {
		t.Error("chain root profit still cached after loan delete")
	}
}

func TestCreateLoanMergeOverpaidChain(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	store.loans["l1"] = domain.Loan{
		ID: "l1", ClientID: "c1",
		BaseAmount: 1000, SubTotal: 1000,
		InterestType: domain.InterestFlat, MonthlyRate: 5, LoanTerms: 6,
		Status: domain.LoanPaidOff,
	}
	store.payments["p1"] = domain.LoanPayment{ID: "p1", LoanID: "l1", ClientID: "c1", PaidAmount: 2000, PaidDate: time.Now()}

	loan, err := svc.CreateLoan(context.Background(), testActor, CreateLoanInput{
		ClientID:     "c1",
		BaseAmount:   500,
		InterestType: domain.InterestFlat,
		MonthlyRate:  5,
		LoanTerms:    6,
		ParentLoanID: strPtr("l1"),
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	// the chain was overpaid; no balance carries forward
	if loan.PreviousLoanAmount != 0 {
		t.Errorf("PreviousLoanAmount = %v, want 0", loan.PreviousLoanAmount)
	}
	if loan.SubTotal != 500 {
		t.Errorf("SubTotal = %v, want 500", loan.SubTotal)
	}
}

func TestUpdateLoanRederivesStatus(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	store.loans["l1"] = domain.Loan{
		ID: "l1", ClientID: "c1",
		BaseAmount: 1000, SubTotal: 1000,
		InterestType: domain.InterestFlat, MonthlyRate: 5, LoanTerms: 12,
		Status: domain.LoanPartialPayment,
	}
	store.payments["p1"] = domain.LoanPayment{ID: "p1", LoanID: "l1", ClientID: "c1", PaidAmount: 1300, PaidDate: time.Now()}

	// shortening the term to 6 months drops the projected total to 1300,
	// which the payments now cover
	term := 6
	loan, err := svc.UpdateLoan(context.Background(), testActor, "l1", UpdateLoanInput{LoanTerms: &term})
	if err != nil {
		t.Fatalf("UpdateLoan: %v", err)
	}
	if loan.Status != domain.LoanPaidOff {
		t.Errorf("Status = %q, want %q", loan.Status, domain.LoanPaidOff)
	}
	if loan.PaidAmount != 1300 {
		t.Errorf("PaidAmount = %v, want 1300", loan.PaidAmount)
	}
}

func TestDeleteLoanGuarded(t *testing.T) {
	store := newMemStore()
	seedClient(store, "c1")
	svc := newLoanService(store)

	store.loans["l1"] = domain.Loan{ID: "l1", ClientID: "c1", BaseAmount: 100, SubTotal: 100, InterestType: domain.InterestFlat, LoanTerms: 6, Status: domain.LoanActive}
	store.payments["p1"] = domain.LoanPayment{ID: "p1", LoanID: "l1", ClientID: "c1", PaidAmount: 50, PaidDate: time.Now()}

	err := svc.DeleteLoan(context.Background(), testActor, "l1")
	if !errors.Is(err, domain.ErrLoanHasPayments) {
		t.Fatalf("err = %v, want ErrLoanHasPayments", err)
	}
	if _, ok := store.loans["l1"]; !ok {
		t.Error("guarded delete removed the loan")
	}

	delete(store.payments, "p1")
	if err := svc.DeleteLoan(context.Background(), testActor, "l1"); err != nil {
		t.Fatalf("DeleteLoan: %v", err)
	}
	if _, ok := store.loans["l1"]; ok {
		t.Error("loan still present after delete")
	}
}

func strPtr(s string) *string { return &s }
