package store

import "sync"

// sessionClock hands out per-session timestamps clamped to the last value it
// issued, so a backwards wall clock can never break the append ordering
// invariant.
type sessionClock struct {
	mu   sync.Mutex
	last map[string]int64
}

func newSessionClock() *sessionClock {
	return &sessionClock{last: make(map[string]int64)}
}

func (c *sessionClock) next(sessionID string, nowMillis int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last := c.last[sessionID]; nowMillis < last {
		nowMillis = last
	}
	c.last[sessionID] = nowMillis
	return nowMillis
}

func (c *sessionClock) observe(sessionID string, createdAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if createdAt > c.last[sessionID] {
		c.last[sessionID] = createdAt
	}
}

func (c *sessionClock) forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, sessionID)
}
