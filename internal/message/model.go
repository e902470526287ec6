package message

import "time"

// Priority values accepted on chat messages.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const DefaultSubject = "Chat Message"

// Message is one persisted chat message. IDs are uuids minted by the
// caller so the wire acknowledgment can reference the message even when
// the insert fails.
type Message struct {
	ID            string     `json:"id"`
	InstitutionID string     `json:"institution_id"`
	SenderID      string     `json:"sender_id"`
	RecipientID   string     `json:"recipient_id"`
	Subject       string     `json:"subject"`
	Content       string     `json:"content"`
	Priority      string     `json:"priority"`
	Read          bool       `json:"read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
