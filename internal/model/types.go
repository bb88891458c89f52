package model

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderCounselor SenderType = "counselor"
	SenderSystem    SenderType = "system"
)

func ValidSenderType(t SenderType) bool {
	return t == SenderUser || t == SenderCounselor || t == SenderSystem
}

type Session struct {
	ID             string
	ParticipantID  string
	Status         SessionStatus
	CreatedAt      int64
	LastActivityAt int64
	ExpiresAt      int64
}

// Message content is always a cipher token ("iv:tag:ciphertext" hex); the
// store never sees plaintext. ClientKey is an optional client-generated
// idempotency key echoed back verbatim so senders can match the broadcast
// against their optimistic entry.
type Message struct {
	ID         string
	SessionID  string
	SenderID   string
	SenderType SenderType
	ClientKey  string
	Content    string
	CreatedAt  int64
}
