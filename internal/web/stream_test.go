package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status: got %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitClients polls until the hub reports n clients.
func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients: got %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamBroadcast(t *testing.T) {
	hub := NewHub()
	ts, _ := newTestServer(t, hub)

	a := dialStream(t, ts)
	b := dialStream(t, ts)
	waitClients(t, hub, 2)

	msg := `{"mpx":{"timestamp":"2026-01-01T00:00:00Z","event":"ALARM_ARMED","word":"0x49C1"}}`
	hub.Broadcast([]byte(msg))

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		if typ != websocket.TextMessage {
			t.Errorf("%s: message type %d, want text", name, typ)
		}
		if string(data) != msg {
			t.Errorf("%s: got %s", name, data)
		}
	}
}

func TestStreamClientDisconnect(t *testing.T) {
	hub := NewHub()
	ts, _ := newTestServer(t, hub)

	conn := dialStream(t, ts)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting with no clients is a no-op.
	hub.Broadcast([]byte("x"))
}

func TestStreamSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ts, _ := newTestServer(t, hub)

	dialStream(t, ts) // never reads
	waitClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*clientBuffer; i++ {
			hub.Broadcast([]byte(strings.Repeat("x", 64)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	ts, _ := newTestServer(t, hub)

	conn := dialStream(t, ts)
	waitClients(t, hub, 1)

	hub.Close()
	if hub.Clients() != 0 {
		t.Errorf("clients after Close: %d", hub.Clients())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}

	// New clients are turned away.
	late := dialStream(t, ts)
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late client to be closed")
	}
}
