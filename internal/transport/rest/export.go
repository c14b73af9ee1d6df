package rest

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"loanbook/internal/repository"
	"loanbook/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type rawExportRequest struct {
	Fields       []string    `json:"fields"`
	LoanID       interface{} `json:"loan_id"`
	ClientID     interface{} `json:"client_id"`
	PaidFromDate interface{} `json:"paid_from_date"`
	PaidToDate   interface{} `json:"paid_to_date"`
}

func (h *Handler) exportPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var raw rawExportRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	loanID, err := toStringPtr(raw.LoanID)
	if err != nil {
		ErrorBadRequest(w, "loan_id must be string or empty")
		return
	}
	clientID, err := toStringPtr(raw.ClientID)
	if err != nil {
		ErrorBadRequest(w, "client_id must be string or empty")
		return
	}
	from, err := toDatePtr(raw.PaidFromDate)
	if err != nil {
		ErrorBadRequest(w, "paid_from_date must be YYYY-MM-DD or empty")
		return
	}
	to, err := toDatePtr(raw.PaidToDate)
	if err != nil {
		ErrorBadRequest(w, "paid_to_date must be YYYY-MM-DD or empty")
		return
	}

	filter := repository.LedgerFilter{
		LoanID:       loanID,
		ClientID:     clientID,
		PaidFromDate: from,
		PaidToDate:   to,
	}

	exportID, err := h.exports.StartPaymentsExport(r.Context(), raw.Fields, filter, userID)
	if err != nil {
		log.Printf("[HTTP] startPaymentsExport error: %v", err)
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export queued", map[string]interface{}{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exports.GetExports(r.Context(), userID)
	if err != nil {
		log.Printf("[HTTP] listExports error: %v", err)
		ErrorInternal(w, "failed to get exports")
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := "exports:" + exportIDParam

	export, err := h.exports.GetExport(r.Context(), exportID, userID)
	if err != nil {
		log.Printf("[HTTP] getExport error: %v", err)
		ErrorNotFound(w, "export not found")
		return
	}

	Success(w, "", export)
}
