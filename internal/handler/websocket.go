package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/auth"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/hub"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/store"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/telemetry"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

type WebSocketHandler struct {
	Hub         *hub.Hub
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Metrics     *telemetry.Metrics
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes to one websocket. gorilla/websocket permits only
// one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (w *wsWriter) writeEvent(event wire.ServerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.Write(data)
}

// Serve upgrades the connection and runs the realtime loop: the client must
// join its session room (again after every reconnect) before messages flow.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}
	claims, err := auth.VerifySessionToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{SessionID: claims.SessionID, Writer: writer}
	h.Metrics.WSConnected(c.Request.Context())

	joined := false
	defer func() {
		if joined {
			h.Hub.Leave(conn)
		}
		_ = ws.Close()
		h.Metrics.WSDisconnected(c.Request.Context())
	}()

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() { close(done) })
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var event wire.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		switch event.Type {
		case wire.EventPing:
			_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventPong})

		case wire.EventJoinRoom:
			if event.SessionID != claims.SessionID {
				_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventError, Error: "Session mismatch"})
				continue
			}
			sess, ok := h.Store.GetSession(claims.SessionID)
			if !ok || sess.Status != model.SessionActive {
				_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventError, Error: "Session not active"})
				return
			}
			if !joined {
				h.Hub.Join(conn)
				joined = true
			}
			_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventJoined, SessionID: claims.SessionID})

		case wire.EventMessage:
			if !joined {
				_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventError, Error: "Join the room first"})
				continue
			}
			if event.SessionID != "" && event.SessionID != claims.SessionID {
				_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventError, Error: "Session mismatch"})
				continue
			}

			now := time.Now().UnixMilli()
			msg, err := h.Store.AppendMessage(claims.SessionID, claims.ParticipantID, model.SenderType(event.SenderType), event.ClientKey, event.Content, now)
			if err != nil {
				// No broadcast on a failed append; only the sender hears
				// about it.
				_ = writer.writeEvent(wire.ServerEvent{Type: wire.EventError, Error: "Append failed"})
				continue
			}
			h.Metrics.MessageAppended(c.Request.Context())
			BroadcastMessage(h.Hub, msg)
		}
	}
}
