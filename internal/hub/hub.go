package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one live transport member of a session room.
type Connection struct {
	SessionID string
	Writer    Writer
}

// Hub tracks the room of live connections for each session id and fans
// broadcasts out to every member, evicting writers that fail.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{rooms: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Join(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[conn.SessionID] == nil {
		h.rooms[conn.SessionID] = make(map[*Connection]struct{})
	}
	h.rooms[conn.SessionID][conn] = struct{}{}
}

func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[conn.SessionID]
	if room == nil {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(h.rooms, conn.SessionID)
	}
}

// RoomSize reports the number of live members in the session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Broadcast writes message to every member of the session room, including
// whichever connection originated it.
func (h *Hub) Broadcast(sessionID string, message []byte) {
	h.mu.RLock()
	room := h.rooms[sessionID]
	conns := make([]*Connection, 0, len(room))
	for c := range room {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Leave(c)
	}
}
