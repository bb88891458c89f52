// Package wire defines the JSON shapes shared by the chat API, the realtime
// channel and the client.
package wire

import "github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"

// Realtime event types. Clients send join-room on connect and on every
// reconnect; message-event is the post-append broadcast to the whole room.
const (
	EventJoinRoom     = "join-room"
	EventJoined       = "joined"
	EventMessage      = "message"
	EventMessageEvent = "message-event"
	EventPing         = "ping"
	EventPong         = "pong"
	EventError        = "error"
)

// ClientEvent is a client-to-server realtime frame.
type ClientEvent struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId,omitempty"`
	SenderType string `json:"senderType,omitempty"`
	ClientKey  string `json:"clientKey,omitempty"`
	Content    string `json:"content,omitempty"`
}

// ServerEvent is a server-to-client realtime frame.
type ServerEvent struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId,omitempty"`
	Error     string   `json:"error,omitempty"`
	Body      *Message `json:"body,omitempty"`
}

// Message is the wire form of a stored message. Content is always a cipher
// token.
type Message struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	SenderID   string `json:"senderId"`
	SenderType string `json:"senderType"`
	ClientKey  string `json:"clientKey,omitempty"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt"`
}

func FromModel(m model.Message) Message {
	return Message{
		ID:         m.ID,
		SessionID:  m.SessionID,
		SenderID:   m.SenderID,
		SenderType: string(m.SenderType),
		ClientKey:  m.ClientKey,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
