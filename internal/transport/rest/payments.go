package rest

import (
	"encoding/json"
	"net/http"

	"loanbook/internal/domain"
	"loanbook/internal/ledger"

	"github.com/go-chi/chi/v5"
)

type rawPaymentRequest struct {
	LoanID       string      `json:"loan_id"`
	ClientID     string      `json:"client_id"`
	PaidAmount   interface{} `json:"paid_amount"`
	PaidDate     interface{} `json:"paid_date"`
	CheckNumber  interface{} `json:"check_number"`
	PayoffLetter interface{} `json:"payoff_letter"`
	CurrentTerm  interface{} `json:"current_term"`
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var raw rawPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	paidAmount, err := toFloat64Ptr(raw.PaidAmount)
	if err != nil {
		ErrorBadRequest(w, "paid_amount must be a number")
		return
	}
	paidDate, err := toDatePtr(raw.PaidDate)
	if err != nil {
		ErrorBadRequest(w, "paid_date must be YYYY-MM-DD or empty")
		return
	}
	checkNumber, err := toStringPtr(raw.CheckNumber)
	if err != nil {
		ErrorBadRequest(w, "check_number must be a string")
		return
	}
	payoffLetter, err := toStringPtr(raw.PayoffLetter)
	if err != nil {
		ErrorBadRequest(w, "payoff_letter must be a string")
		return
	}
	currentTerm, err := toIntPtr(raw.CurrentTerm)
	if err != nil {
		ErrorBadRequest(w, "current_term must be an integer")
		return
	}

	in := ledger.AddPaymentInput{
		LoanID:   raw.LoanID,
		ClientID: raw.ClientID,
		PaidDate: paidDate,
	}
	if paidAmount != nil {
		in.PaidAmount = *paidAmount
	}
	if checkNumber != nil {
		in.CheckNumber = *checkNumber
	}
	if payoffLetter != nil {
		in.PayoffLetter = *payoffLetter
	}
	if currentTerm != nil {
		in.CurrentTerm = *currentTerm
	}

	res, err := h.engine.AddPayment(r.Context(), actor, in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "payment recorded", paymentResultView(res))
}

func (h *Handler) editPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var raw rawPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	paidAmount, err := toFloat64Ptr(raw.PaidAmount)
	if err != nil {
		ErrorBadRequest(w, "paid_amount must be a number")
		return
	}
	paidDate, err := toDatePtr(raw.PaidDate)
	if err != nil {
		ErrorBadRequest(w, "paid_date must be YYYY-MM-DD or empty")
		return
	}
	checkNumber, err := toStringPtr(raw.CheckNumber)
	if err != nil {
		ErrorBadRequest(w, "check_number must be a string")
		return
	}
	payoffLetter, err := toStringPtr(raw.PayoffLetter)
	if err != nil {
		ErrorBadRequest(w, "payoff_letter must be a string")
		return
	}
	currentTerm, err := toIntPtr(raw.CurrentTerm)
	if err != nil {
		ErrorBadRequest(w, "current_term must be an integer")
		return
	}

	upd := ledger.PaymentUpdate{
		PaidAmount:   paidAmount,
		PaidDate:     paidDate,
		CheckNumber:  checkNumber,
		PayoffLetter: payoffLetter,
	}
	term := 0
	if currentTerm != nil {
		term = *currentTerm
	}

	res, err := h.engine.EditPayment(r.Context(), actor, chi.URLParam(r, "payment_id"), upd, term)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "payment updated", paymentResultView(res))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.engine.DeletePayment(r.Context(), actor, chi.URLParam(r, "payment_id")); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "payment deleted", nil)
}

func (h *Handler) getLoanPayments(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetPayments(r.Context(), chi.URLParam(r, "loan_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "", map[string]interface{}{
		"payments": paymentViews(view.Payments),
		"profit":   view.Profit,
	})
}

func (h *Handler) getClientPayments(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetAllPaymentsForClient(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	payments := make(map[string][]map[string]interface{}, len(view.Payments))
	for loanID, ps := range view.Payments {
		payments[loanID] = paymentViews(ps)
	}

	Success(w, "", map[string]interface{}{
		"payments": payments,
		"profit":   view.Profit,
	})
}

func (h *Handler) getLastPaymentDate(w http.ResponseWriter, r *http.Request) {
	last, err := h.engine.GetLastPaymentDate(r.Context(), chi.URLParam(r, "loan_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	var lastPaid interface{}
	if last != nil {
		lastPaid = last.Format("2006-01-02")
	}
	Success(w, "", map[string]interface{}{"last_paid_date": lastPaid})
}

func paymentResultView(res *ledger.PaymentResult) map[string]interface{} {
	return map[string]interface{}{
		"payment":    paymentView(res.Payment),
		"total_loan": res.TotalLoan,
		"total_paid": res.TotalPaid,
		"remaining":  res.Remaining,
	}
}

func paymentView(p domain.LoanPayment) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"loan_id":       p.LoanID,
		"client_id":     p.ClientID,
		"paid_amount":   p.PaidAmount,
		"paid_date":     p.PaidDate.Format("2006-01-02"),
		"check_number":  p.CheckNumber,
		"payoff_letter": p.PayoffLetter,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}

func paymentViews(payments []domain.LoanPayment) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(payments))
	for _, p := range payments {
		views = append(views, paymentView(p))
	}
	return views
}
