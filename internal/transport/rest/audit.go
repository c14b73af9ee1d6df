package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"loanbook/internal/repository"
)

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	var f repository.AuditFilter
	if v := r.URL.Query().Get("entity_kind"); v != "" {
		f.EntityKind = &v
	}
	if v := r.URL.Query().Get("entity_id"); v != "" {
		f.EntityID = &v
	}

	if v := r.URL.Query().Get("actor_id"); v != "" {
		actorID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			ErrorBadRequest(w, "actor_id must be an integer")
			return
		}
		f.ActorID = &actorID
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			ErrorBadRequest(w, "limit must be an integer")
			return
		}
		f.Limit = limit
	}

	entries, err := h.audit.List(r.Context(), f)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	views := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		views = append(views, map[string]interface{}{
			"id":          e.ID,
			"actor_id":    e.ActorID,
			"actor_role":  e.ActorRole,
			"message":     e.Message,
			"entity_kind": e.EntityKind,
			"entity_id":   e.EntityID,
			"before":      rawJSON(e.Before),
			"after":       rawJSON(e.After),
			"created_at":  e.CreatedAt,
		})
	}

	Success(w, "", views)
}

func rawJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
