package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/crypto"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

// dedupWindow is the timestamp tolerance when matching a broadcast echo to an
// optimistic entry that carried no client key.
const dedupWindow = time.Second

// Entry is one displayed message. Pending entries are optimistic local sends
// that the store has not yet echoed back. DecodeFailed marks entries whose
// ciphertext could not be opened; Text then holds the raw token.
type Entry struct {
	ID           string
	ClientKey    string
	SenderID     string
	SenderType   model.SenderType
	Text         string
	CreatedAt    int64
	Pending      bool
	DecodeFailed bool
}

// Timeline holds one view's ordered message list and folds the room's
// broadcast echoes into it without duplicating the view's own sends.
type Timeline struct {
	mu      sync.Mutex
	codec   *crypto.Codec
	entries []Entry
	seen    map[string]struct{}
}

func NewTimeline(codec *crypto.Codec) *Timeline {
	return &Timeline{codec: codec, seen: make(map[string]struct{})}
}

// Load replaces the timeline with one page of stored history.
func (t *Timeline) Load(msgs []wire.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
	t.seen = make(map[string]struct{})
	for _, msg := range msgs {
		t.entries = append(t.entries, t.fromWire(msg))
		t.seen[msg.ID] = struct{}{}
	}
}

// AppendOptimistic adds a pending local entry and returns it. The generated
// client key travels with the send so the broadcast echo can be matched
// exactly.
func (t *Timeline) AppendOptimistic(senderType model.SenderType, text string, nowMillis int64) Entry {
	entry := Entry{
		ClientKey:  uuid.NewString(),
		SenderType: senderType,
		Text:       text,
		CreatedAt:  nowMillis,
		Pending:    true,
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// Remove rolls back a pending entry after a failed send. Reports whether the
// entry was found.
func (t *Timeline) Remove(clientKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, entry := range t.entries {
		if entry.Pending && entry.ClientKey == clientKey {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Apply folds one broadcast record into the timeline. An echo of the view's
// own pending send confirms that entry in place; anything else is appended.
// Reports whether a new entry was added.
//
// Matching order: already-seen store ids are dropped, then an exact client
// key match, then a same-sender-type equal-plaintext match within a short
// timestamp window for echoes that carry no key.
func (t *Timeline) Apply(msg wire.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[msg.ID]; ok {
		return false
	}

	if msg.ClientKey != "" {
		for i := range t.entries {
			if t.entries[i].Pending && t.entries[i].ClientKey == msg.ClientKey {
				t.confirm(i, msg)
				return false
			}
		}
	}

	incoming := t.fromWire(msg)
	for i := range t.entries {
		e := &t.entries[i]
		if e.Pending && e.SenderType == incoming.SenderType && e.Text == incoming.Text &&
			absMillis(msg.CreatedAt-e.CreatedAt) < dedupWindow.Milliseconds() {
			t.confirm(i, msg)
			return false
		}
	}

	t.entries = append(t.entries, incoming)
	t.seen[msg.ID] = struct{}{}
	return true
}

// Entries returns a copy of the current display list.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) confirm(i int, msg wire.Message) {
	e := &t.entries[i]
	e.ID = msg.ID
	e.SenderID = msg.SenderID
	e.CreatedAt = msg.CreatedAt
	e.Pending = false
	t.seen[msg.ID] = struct{}{}
}

// fromWire decodes a stored record for display. Undecodable content is shown
// as the raw token rather than breaking the view.
func (t *Timeline) fromWire(msg wire.Message) Entry {
	entry := Entry{
		ID:         msg.ID,
		ClientKey:  msg.ClientKey,
		SenderID:   msg.SenderID,
		SenderType: model.SenderType(msg.SenderType),
		CreatedAt:  msg.CreatedAt,
	}
	text, err := t.codec.Decode(msg.Content)
	if err != nil {
		entry.Text = msg.Content
		entry.DecodeFailed = true
	} else {
		entry.Text = text
	}
	return entry
}

func absMillis(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}
