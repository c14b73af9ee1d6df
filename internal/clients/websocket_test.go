package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loanbook/internal/domain"
	ws "loanbook/internal/transport/websocket"

	"github.com/gorilla/websocket"
)

func newNotifyTestConn(t *testing.T, userID int64) (*WebSocketClient, *websocket.Conn) {
	t.Helper()

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, userID)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// give the hub a moment to register the connection
	time.Sleep(100 * time.Millisecond)

	return NewWebSocketClient(hub), conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (ws.Message, map[string]interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("read message: %v", err)
	}

	dataBytes, err := json.Marshal(received.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	return received, data
}

func TestWebSocketClient_NotifyExportProgress(t *testing.T) {
	client, conn := newNotifyTestConn(t, 1)

	if err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, "generating"); err != nil {
		t.Fatalf("notify progress: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_progress" {
		t.Errorf("type = %q, want export_progress", received.Type)
	}
	if received.UserID != 1 {
		t.Errorf("userID = %d, want 1", received.UserID)
	}
	if received.Channel != "export_progress#1" {
		t.Errorf("channel = %q, want export_progress#1", received.Channel)
	}
	if data["id"] != "export-123" {
		t.Errorf("id = %v, want export-123", data["id"])
	}
	if data["progress"].(float64) != 50.5 {
		t.Errorf("progress = %v, want 50.5", data["progress"])
	}
	if data["stage"] != "generating" {
		t.Errorf("stage = %v, want generating", data["stage"])
	}
}

func TestWebSocketClient_NotifyExportComplete(t *testing.T) {
	client, conn := newNotifyTestConn(t, 1)

	err := client.NotifyExportComplete(context.Background(), 1, "export-123", "https://example.com/file.xlsx", "payments_20260101.xlsx")
	if err != nil {
		t.Fatalf("notify complete: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_complete" {
		t.Errorf("type = %q, want export_complete", received.Type)
	}
	if received.Channel != "export_complete#1" {
		t.Errorf("channel = %q, want export_complete#1", received.Channel)
	}
	if data["url"] != "https://example.com/file.xlsx" {
		t.Errorf("url = %v", data["url"])
	}
	if data["filename"] != "payments_20260101.xlsx" {
		t.Errorf("filename = %v", data["filename"])
	}
}

func TestWebSocketClient_NotifyExportFailed(t *testing.T) {
	client, conn := newNotifyTestConn(t, 1)

	if err := client.NotifyExportFailed(context.Background(), 1, "export-123", "upload failed"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_failed" {
		t.Errorf("type = %q, want export_failed", received.Type)
	}
	if data["message"] != "upload failed" {
		t.Errorf("message = %v, want 'upload failed'", data["message"])
	}
}

func TestWebSocketClient_NotifyAudit(t *testing.T) {
	client, conn := newNotifyTestConn(t, 7)

	entry := domain.AuditEntry{
		ActorID:    7,
		Message:    "payment recorded",
		EntityKind: "payment",
		EntityID:   "pay-1",
	}
	if err := client.NotifyAudit(context.Background(), entry); err != nil {
		t.Fatalf("notify audit: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "audit_recorded" {
		t.Errorf("type = %q, want audit_recorded", received.Type)
	}
	if received.Channel != "audit#7" {
		t.Errorf("channel = %q, want audit#7", received.Channel)
	}
	if data["message"] != "payment recorded" {
		t.Errorf("message = %v", data["message"])
	}
	if data["entity_kind"] != "payment" {
		t.Errorf("entity_kind = %v", data["entity_kind"])
	}
}

func TestWebSocketClient_NilHub(t *testing.T) {
	client := NewWebSocketClient(nil)

	if err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, ""); err != nil {
		t.Errorf("nil hub progress: %v", err)
	}
	if err := client.NotifyExportComplete(context.Background(), 1, "export-123", "u", "f"); err != nil {
		t.Errorf("nil hub complete: %v", err)
	}
	if err := client.NotifyAudit(context.Background(), domain.AuditEntry{ActorID: 1}); err != nil {
		t.Errorf("nil hub audit: %v", err)
	}
}
