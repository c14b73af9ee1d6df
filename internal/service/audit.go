package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"loanbook/internal/clients"
	"loanbook/internal/domain"
	"loanbook/internal/ledger"
	"loanbook/internal/repository"
)

type AuditRepository interface {
	Insert(ctx context.Context, e *domain.AuditEntry) error
	List(ctx context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error)
}

// Recorder persists audit entries and mirrors them to the acting user's
// websocket connections. It satisfies ledger.AuditSink.
type Recorder struct {
	repo AuditRepository
	ws   *clients.WebSocketClient
}

func NewRecorder(repo AuditRepository, ws *clients.WebSocketClient) *Recorder {
	return &Recorder{repo: repo, ws: ws}
}

func (r *Recorder) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.CreatedAt == nil {
		now := time.Now()
		e.CreatedAt = &now
	}

	if err := r.repo.Insert(ctx, &e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if r.ws != nil {
		if err := r.ws.NotifyAudit(ctx, e); err != nil {
			log.Printf("[AUDIT] websocket notify failed: %v", err)
		}
	}
	return nil
}

func (r *Recorder) List(ctx context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error) {
	return r.repo.List(ctx, f)
}

var _ ledger.AuditSink = (*Recorder)(nil)

// record writes one entry to the sink, best-effort. Services call this for
// mutations the ledger engine does not mediate.
func record(ctx context.Context, sink ledger.AuditSink, actor domain.Actor, message, entityKind, entityID string, before, after any) {
	if sink == nil {
		return
	}
	entry := domain.AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Message:    message,
		EntityKind: entityKind,
		EntityID:   entityID,
		Before:     snapshotJSON(before),
		After:      snapshotJSON(after),
	}
	if err := sink.Record(ctx, entry); err != nil {
		log.Printf("[AUDIT] record failed for %s %s: %v", entityKind, entityID, err)
	}
}

func snapshotJSON(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
