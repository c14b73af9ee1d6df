package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, hub *Hub, userID int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, userID)
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, userID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.connections[userID])
		hub.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never reached %d connections", userID, want)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub, 7)
	defer srv.Close()

	conn := dial(t, srv)
	waitForConnections(t, hub, 7, 1)

	conn.Close()
	waitForConnections(t, hub, 7, 0)
}

func TestHubBroadcastDelivers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub, 3)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitForConnections(t, hub, 3, 1)

	hub.Broadcast(3, &Message{
		Type:    "export.completed",
		Channel: "exports",
		Data:    map[string]string{"export_id": "abc"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "export.completed" {
		t.Errorf("type = %q, want export.completed", got.Type)
	}
	if got.Channel != "exports" {
		t.Errorf("channel = %q, want exports", got.Channel)
	}
}

func TestHubBroadcastOnlyTargetUser(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srvA := newTestServer(t, hub, 1)
	defer srvA.Close()
	srvB := newTestServer(t, hub, 2)
	defer srvB.Close()

	connA := dial(t, srvA)
	defer connA.Close()
	connB := dial(t, srvB)
	defer connB.Close()
	waitForConnections(t, hub, 1, 1)
	waitForConnections(t, hub, 2, 1)

	hub.Broadcast(1, &Message{Type: "audit.recorded", Data: "x"})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	if err := connA.ReadJSON(&got); err != nil {
		t.Fatalf("target user read: %v", err)
	}
	if got.Type != "audit.recorded" {
		t.Errorf("type = %q, want audit.recorded", got.Type)
	}

	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := connB.ReadJSON(&got); err == nil {
		t.Fatal("user 2 received a message addressed to user 1")
	}
}

func TestHubMultipleConnectionsSameUser(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub, 9)
	defer srv.Close()

	first := dial(t, srv)
	defer first.Close()
	second := dial(t, srv)
	defer second.Close()
	waitForConnections(t, hub, 9, 2)

	hub.Broadcast(9, &Message{Type: "export.progress", Data: 50})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Message
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("connection %d read: %v", i, err)
		}
		if got.Type != "export.progress" {
			t.Errorf("connection %d type = %q, want export.progress", i, got.Type)
		}
	}
}
