package rest

import (
	"encoding/json"
	"net/http"

	"loanbook/internal/domain"
	"loanbook/internal/service"

	"github.com/go-chi/chi/v5"
)

type clientRequest struct {
	CompanyID string `json:"company_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (r *clientRequest) toInput() service.ClientInput {
	return service.ClientInput{
		CompanyID: r.CompanyID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
	}
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	client, err := h.clients.CreateClient(r.Context(), actor, req.toInput())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "client created", clientView(client))
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.GetClient(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "", clientView(client))
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListClients(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(clients))
	for i := range clients {
		views = append(views, clientView(&clients[i]))
	}
	Success(w, "", views)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	client, err := h.clients.UpdateClient(r.Context(), actor, chi.URLParam(r, "client_id"), req.toInput())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "client updated", clientView(client))
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.clients.DeleteClient(r.Context(), actor, chi.URLParam(r, "client_id")); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "client deleted", nil)
}

func clientView(c *domain.Client) map[string]interface{} {
	return map[string]interface{}{
		"id":         c.ID,
		"company_id": c.CompanyID,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"full_name":  c.FullName(),
		"email":      c.Email,
		"phone":      c.Phone,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}
