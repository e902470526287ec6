package chat

import (
	"encoding/json"
	"time"
)

// Frame type discriminators. Inbound types are what clients send us,
// outbound types are what we push back over the socket.
const (
	TypeChatMessage    = "chat_message"
	TypeTyping         = "typing"
	TypeReadReceipt    = "read_receipt"
	TypeGetOnlineUsers = "get_online_users"
	TypePing           = "ping"

	TypeConnected   = "connected"
	TypeOnlineUsers = "online_users"
	TypeMessageSent = "message_sent"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypePong        = "pong"
	TypeError       = "error"
)

// Inbound is the envelope for every frame a client sends. Fields beyond
// Type are populated depending on the frame type; handlers validate what
// they actually need.
type Inbound struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	Subject     string `json:"subject"`
	Priority    string `json:"priority"`
	IsTyping    *bool  `json:"is_typing"` // nil means true, matching client defaults
	MessageID   string `json:"message_id"`
}

type connectedFrame struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type onlineUsersFrame struct {
	Type  string           `json:"type"`
	Users []PresenceRecord `json:"users"`
	Count int              `json:"count"`
}

type chatMessageFrame struct {
	Type        string    `json:"type"`
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Priority    string    `json:"priority"`
	Timestamp   time.Time `json:"timestamp"`
}

type messageSentFrame struct {
	Type            string    `json:"type"`
	MessageID       string    `json:"message_id"`
	RecipientOnline bool      `json:"recipient_online"`
	Timestamp       time.Time `json:"timestamp"`
}

type typingFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type readReceiptFrame struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	ReadBy    string    `json:"read_by"`
	ReadAt    time.Time `json:"read_at"`
}

// userEventFrame covers both user_joined and user_left.
type userEventFrame struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type pongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// marshalFrame serializes an outbound frame. The frame structs above contain
// nothing that can fail to marshal.
func marshalFrame(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
