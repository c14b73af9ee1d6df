package clients

import (
	"context"
	"fmt"

	"loanbook/internal/domain"
	ws "loanbook/internal/transport/websocket"
)

type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%d", userID),
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%d", userID),
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}

// NotifyAudit mirrors a freshly recorded audit entry to the acting user's
// open back-office sessions.
func (c *WebSocketClient) NotifyAudit(ctx context.Context, entry domain.AuditEntry) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(entry.ActorID, &ws.Message{
		Type:    "audit_recorded",
		Channel: fmt.Sprintf("audit#%d", entry.ActorID),
		Data: map[string]interface{}{
			"message":     entry.Message,
			"entity_kind": entry.EntityKind,
			"entity_id":   entry.EntityID,
		},
	})
	return nil
}
