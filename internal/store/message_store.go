package store

import (
	"sync"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
)

type messageStore struct {
	mu   sync.RWMutex
	data map[string][]model.Message
}

func newMessageStore() *messageStore {
	return &messageStore{data: make(map[string][]model.Message)}
}

func (m *messageStore) append(sessionID string, msg model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[sessionID] = append(m.data[sessionID], msg)
}

// removeByID undoes an append whose persistence failed. Messages are
// otherwise immutable.
func (m *messageStore) removeByID(sessionID, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.data[sessionID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == messageID {
			m.data[sessionID] = append(msgs[:i], msgs[i+1:]...)
			return
		}
	}
}

// page returns a contiguous slice of the session log, ascending by append
// order (and therefore by CreatedAt).
func (m *messageStore) page(sessionID string, limit, offset int) []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.data[sessionID]
	if offset >= len(msgs) {
		return nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}

	result := make([]model.Message, end-offset)
	copy(result, msgs[offset:end])
	return result
}

func (m *messageStore) snapshot() map[string][]model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]model.Message, len(m.data))
	for sid, msgs := range m.data {
		copied := make([]model.Message, len(msgs))
		copy(copied, msgs)
		result[sid] = copied
	}
	return result
}

func (m *messageStore) restore(sessionID string, msgs []model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = msgs
}

func (m *messageStore) deleteSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
}
