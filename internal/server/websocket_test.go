package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wire.ServerEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event wire.ServerEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return event
}

func joinRoom(t *testing.T, conn *websocket.Conn, sessionID string) {
	t.Helper()
	if err := conn.WriteJSON(wire.ClientEvent{Type: wire.EventJoinRoom, SessionID: sessionID}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	event := readEvent(t, conn)
	if event.Type != wire.EventJoined {
		t.Fatalf("expected joined, got %+v", event)
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, token := startSession(t, r, "p1")
	conn := dialWS(t, srv, token)

	if err := conn.WriteJSON(wire.ClientEvent{Type: wire.EventPing}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	event := readEvent(t, conn)
	if event.Type != wire.EventPong {
		t.Fatalf("expected pong, got %+v", event)
	}
}

func TestWebSocket_MultiViewerFanOut(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	sessionID, token := startSession(t, r, "p1")

	viewer1 := dialWS(t, srv, token)
	viewer2 := dialWS(t, srv, token)
	joinRoom(t, viewer1, sessionID)
	joinRoom(t, viewer2, sessionID)

	send := wire.ClientEvent{
		Type:       wire.EventMessage,
		SessionID:  sessionID,
		SenderType: "user",
		ClientKey:  "ck-1",
		Content:    "aa:bb:cc",
	}
	if err := viewer1.WriteJSON(send); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// Both room members receive the broadcast, the sender included.
	for _, conn := range []*websocket.Conn{viewer1, viewer2} {
		event := readEvent(t, conn)
		if event.Type != wire.EventMessageEvent {
			t.Fatalf("expected message-event, got %+v", event)
		}
		if event.Body == nil || event.Body.Content != "aa:bb:cc" || event.Body.ClientKey != "ck-1" {
			t.Fatalf("unexpected body: %+v", event.Body)
		}
		if event.Body.ID == "" || event.Body.CreatedAt == 0 {
			t.Fatalf("expected server-assigned id and timestamp: %+v", event.Body)
		}
	}
}

func TestWebSocket_MessageBeforeJoinRefused(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	sessionID, token := startSession(t, r, "p1")
	conn := dialWS(t, srv, token)

	send := wire.ClientEvent{Type: wire.EventMessage, SessionID: sessionID, SenderType: "user", Content: "aa:bb:cc"}
	if err := conn.WriteJSON(send); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	event := readEvent(t, conn)
	if event.Type != wire.EventError {
		t.Fatalf("expected error before join, got %+v", event)
	}
}

func TestWebSocket_JoinForeignRoomRefused(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	otherSession, _ := startSession(t, r, "p1")
	_, token2 := startSession(t, r, "p2")

	conn := dialWS(t, srv, token2)
	if err := conn.WriteJSON(wire.ClientEvent{Type: wire.EventJoinRoom, SessionID: otherSession}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	event := readEvent(t, conn)
	if event.Type != wire.EventError {
		t.Fatalf("expected error joining a foreign room, got %+v", event)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial failure without token")
	}
	if resp != nil && resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

