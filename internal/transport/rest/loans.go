package rest

import (
	"encoding/json"
	"net/http"

	"loanbook/internal/domain"
	"loanbook/internal/service"

	"github.com/go-chi/chi/v5"
)

type rawLoanRequest struct {
	ClientID     string      `json:"client_id"`
	CompanyID    string      `json:"company_id"`
	BaseAmount   interface{} `json:"base_amount"`
	InterestType string      `json:"interest_type"`
	MonthlyRate  interface{} `json:"monthly_rate"`
	LoanTerms    interface{} `json:"loan_terms"`
	ParentLoanID interface{} `json:"parent_loan_id"`
}

func (h *Handler) createLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var raw rawLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	baseAmount, err := toFloat64Ptr(raw.BaseAmount)
	if err != nil {
		ErrorBadRequest(w, "base_amount must be a number")
		return
	}
	monthlyRate, err := toFloat64Ptr(raw.MonthlyRate)
	if err != nil {
		ErrorBadRequest(w, "monthly_rate must be a number")
		return
	}
	loanTerms, err := toIntPtr(raw.LoanTerms)
	if err != nil {
		ErrorBadRequest(w, "loan_terms must be an integer")
		return
	}
	parentLoanID, err := toStringPtr(raw.ParentLoanID)
	if err != nil {
		ErrorBadRequest(w, "parent_loan_id must be a string")
		return
	}

	in := service.CreateLoanInput{
		ClientID:     raw.ClientID,
		CompanyID:    raw.CompanyID,
		InterestType: domain.InterestType(raw.InterestType),
		ParentLoanID: parentLoanID,
	}
	if baseAmount != nil {
		in.BaseAmount = *baseAmount
	}
	if monthlyRate != nil {
		in.MonthlyRate = *monthlyRate
	}
	if loanTerms != nil {
		in.LoanTerms = *loanTerms
	}

	loan, err := h.loans.CreateLoan(r.Context(), actor, in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "loan created", loanView(loan))
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetLoan(r.Context(), chi.URLParam(r, "loan_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", loanView(loan))
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListLoans(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", loanViews(loans))
}

func (h *Handler) listClientLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListLoansByClient(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", loanViews(loans))
}

func (h *Handler) updateLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var raw rawLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	monthlyRate, err := toFloat64Ptr(raw.MonthlyRate)
	if err != nil {
		ErrorBadRequest(w, "monthly_rate must be a number")
		return
	}
	loanTerms, err := toIntPtr(raw.LoanTerms)
	if err != nil {
		ErrorBadRequest(w, "loan_terms must be an integer")
		return
	}

	in := service.UpdateLoanInput{
		MonthlyRate: monthlyRate,
		LoanTerms:   loanTerms,
	}
	if raw.InterestType != "" {
		it := domain.InterestType(raw.InterestType)
		in.InterestType = &it
	}

	loan, err := h.loans.UpdateLoan(r.Context(), actor, chi.URLParam(r, "loan_id"), in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "loan updated", loanView(loan))
}

func (h *Handler) deleteLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.loans.DeleteLoan(r.Context(), actor, chi.URLParam(r, "loan_id")); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "loan deleted", nil)
}

func loanView(l *domain.Loan) map[string]interface{} {
	return map[string]interface{}{
		"id":                   l.ID,
		"client_id":            l.ClientID,
		"company_id":           l.CompanyID,
		"base_amount":          l.BaseAmount,
		"sub_total":            l.SubTotal,
		"previous_loan_amount": l.PreviousLoanAmount,
		"interest_type":        l.InterestType,
		"monthly_rate":         l.MonthlyRate,
		"loan_terms":           l.LoanTerms,
		"paid_amount":          l.PaidAmount,
		"status":               l.Status,
		"parent_loan_id":       l.ParentLoanID,
		"created_at":           l.CreatedAt,
		"updated_at":           l.UpdatedAt,
	}
}

func loanViews(loans []domain.Loan) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(loans))
	for i := range loans {
		views = append(views, loanView(&loans[i]))
	}
	return views
}
