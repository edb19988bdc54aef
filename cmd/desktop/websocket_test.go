package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/kimhsiao/leadbook/internal/services"
)

type wsEvent struct {
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	// The pong only arrives once the hub has registered the client.
	send(t, conn, map[string]any{"action": "ping"})
	if msg := readEvent(t, conn); msg.Action != "pong" {
		t.Fatalf("Expected pong, got %+v", msg)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsEvent
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return msg
}

func TestWebSocket_BroadcastsLeadEvents(t *testing.T) {
	server, _, hub := setupTestServer(t)
	conn := dialWS(t, server)

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/leads", `{"first":"Jane","last":"Doe"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create returned %d", resp.StatusCode)
	}

	msg := readEvent(t, conn)
	if msg.Type != services.EventLeadCreated {
		t.Fatalf("Expected %s, got %+v", services.EventLeadCreated, msg)
	}
	if msg.Data["index"] != float64(0) {
		t.Errorf("Expected index 0 in event, got %v", msg.Data["index"])
	}
	if msg.Timestamp == 0 {
		t.Error("Event should carry a timestamp")
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/save", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Save returned %d", resp.StatusCode)
	}
	if msg := readEvent(t, conn); msg.Type != services.EventLeadsSaved {
		t.Errorf("Expected %s, got %+v", services.EventLeadsSaved, msg)
	}
}

func TestWebSocket_Subscriptions(t *testing.T) {
	server, _, _ := setupTestServer(t)
	conn := dialWS(t, server)

	send(t, conn, map[string]any{"action": "subscribe", "events": []string{services.EventExportCompleted}})
	if msg := readEvent(t, conn); msg.Action != "subscribe_ack" {
		t.Fatalf("Expected subscribe_ack, got %+v", msg)
	}

	doJSON(t, http.MethodPost, server.URL+"/api/leads", `{"first":"Jane"}`)
	resp := doJSON(t, http.MethodPost, server.URL+"/api/export", `{"path":"leads.txt"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Export returned %d", resp.StatusCode)
	}

	// leads.created was filtered out, so the export event comes first.
	msg := readEvent(t, conn)
	if msg.Type != services.EventExportCompleted {
		t.Fatalf("Expected %s, got %+v", services.EventExportCompleted, msg)
	}
	if msg.Data["format"] != "txt" || msg.Data["count"] != float64(1) {
		t.Errorf("Unexpected export event data %v", msg.Data)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	server, _, _ := setupTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %v", resp)
	}
}

func TestIsLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8090", true},
		{"http://[::1]:8090", true},
		{"https://evil.example.com", false},
		{"http://192.168.1.10", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := isLocalOrigin(r); got != tt.want {
			t.Errorf("isLocalOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestWSHub_CloseStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewWSHub(testLogger())
	hub.Broadcast(services.EventLeadCreated, map[string]any{"index": 0})
	hub.Close()
	hub.Close()

	// Broadcasting after Close must not block.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(services.EventLeadDeleted, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after Close")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}

func TestWSClient_Wants(t *testing.T) {
	c := &WSClient{subscriptions: map[string]bool{}}
	if !c.wants(services.EventLeadCreated) {
		t.Error("Client without subscriptions should receive everything")
	}
	c.subscriptions[services.EventExportFailed] = true
	if c.wants(services.EventLeadCreated) {
		t.Error("Subscribed client should only receive its events")
	}
	if !c.wants(services.EventExportFailed) {
		t.Error("Subscribed client should receive subscribed events")
	}
}
