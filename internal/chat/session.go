package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"school-chat/internal/message"
	"school-chat/internal/metrics"
)

// MessageStore is the external message persistence this subsystem calls
// into. Offline delivery rides on it; the session only does best-effort
// live forwarding.
type MessageStore interface {
	Save(ctx context.Context, m *message.Message) error
	MarkRead(ctx context.Context, messageID, readerID string) (senderID string, readAt time.Time, err error)
}

// Directory resolves chat participants against the tenant's user directory.
type Directory interface {
	// LookupMember reports the display name of userID when it belongs to
	// institutionID; ok is false for unknown or cross-institution users.
	LookupMember(ctx context.Context, userID, institutionID string) (name string, ok bool, err error)
}

// Session owns the connect -> serve -> disconnect lifecycle of one
// connection. Per-frame errors are answered with error frames and never
// terminate the loop; only transport failures do.
type Session struct {
	client *Client
	d      *Dispatcher
	store  MessageStore
	dir    Directory
}

func newSession(client *Client, d *Dispatcher, store MessageStore, dir Directory) *Session {
	return &Session{client: client, d: d, store: store, dir: dir}
}

// run registers the connection, announces it, serves frames until the
// transport dies, and then cleans up. Cleanup runs on every exit path.
func (s *Session) run(ctx context.Context) {
	prev := s.d.Connect(s.client)
	if prev != nil {
		// Last-connect-wins: tell the superseded channel why it is going away.
		prev.close(websocket.ClosePolicyViolation, "connection superseded by a newer one")
	}
	defer s.teardown()

	go s.client.writePump()

	s.d.BroadcastToInstitution(s.client.InstitutionID, marshalFrame(userEventFrame{
		Type:      TypeUserJoined,
		UserID:    s.client.UserID,
		Timestamp: time.Now().UTC(),
	}), s.client.UserID)

	if err := s.welcome(); err != nil {
		return
	}
	s.readLoop(ctx)
}

func (s *Session) teardown() {
	if s.d.DisconnectClient(s.client) {
		log.Printf("user %s disconnected", s.client.UserID)
	}
}

// welcome sends the connected frame and the initial presence snapshot.
func (s *Session) welcome() error {
	if err := s.send(connectedFrame{
		Type:      TypeConnected,
		Message:   fmt.Sprintf("Welcome %s!", s.client.Name),
		UserID:    s.client.UserID,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return s.sendOnlineUsers()
}

// readLoop blocks on inbound frames and dispatches them until the
// connection reports closed or errors.
func (s *Session) readLoop(ctx context.Context) {
	conn := s.client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", s.client.UserID, err)
			}
			return
		}
		metrics.FramesReceived.Inc()

		if err := s.handleFrame(ctx, raw); err != nil {
			// Our own outbound channel is dead; nothing more to serve.
			return
		}
	}
}

// handleFrame decodes one inbound frame and dispatches on its type. The
// returned error is non-nil only when the session's own channel failed;
// protocol problems are answered in-band.
func (s *Session) handleFrame(ctx context.Context, raw []byte) error {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return s.sendError("invalid JSON frame")
	}

	switch in.Type {
	case TypeChatMessage:
		return s.handleChatMessage(ctx, &in)
	case TypeTyping:
		return s.handleTyping(&in)
	case TypeReadReceipt:
		return s.handleReadReceipt(ctx, &in)
	case TypeGetOnlineUsers:
		return s.sendOnlineUsers()
	case TypePing:
		return s.send(pongFrame{Type: TypePong, Timestamp: time.Now().UTC()})
	default:
		return s.sendError(fmt.Sprintf("Unknown message type: %s", in.Type))
	}
}

func (s *Session) handleChatMessage(ctx context.Context, in *Inbound) error {
	if in.RecipientID == "" {
		return s.sendError("recipient_id is required")
	}

	_, ok, err := s.dir.LookupMember(ctx, in.RecipientID, s.client.InstitutionID)
	if err != nil {
		return s.sendError("recipient lookup failed")
	}
	if !ok {
		return s.sendError("Recipient not found or not in same institution")
	}

	msg := &message.Message{
		ID:            uuid.NewString(),
		InstitutionID: s.client.InstitutionID,
		SenderID:      s.client.UserID,
		RecipientID:   in.RecipientID,
		Subject:       in.Subject,
		Content:       in.Content,
		Priority:      in.Priority,
		CreatedAt:     time.Now().UTC(),
	}
	if msg.Subject == "" {
		msg.Subject = message.DefaultSubject
	}
	if msg.Priority == "" {
		msg.Priority = message.PriorityNormal
	}

	// Registry state is settled before this suspension point; the store
	// call can interleave with other sessions safely.
	if err := s.store.Save(ctx, msg); err != nil {
		log.Printf("persist failed for message %s: %v", msg.ID, err)
		if err := s.sendError("failed to persist message"); err != nil {
			return err
		}
		// Live delivery still proceeds; persistence is not transactional
		// with it.
	}

	delivered := s.d.SendToUser(in.RecipientID, marshalFrame(chatMessageFrame{
		Type:        TypeChatMessage,
		MessageID:   msg.ID,
		SenderID:    s.client.UserID,
		SenderName:  s.client.Name,
		RecipientID: in.RecipientID,
		Content:     msg.Content,
		Priority:    msg.Priority,
		Timestamp:   msg.CreatedAt,
	}))

	return s.send(messageSentFrame{
		Type:            TypeMessageSent,
		MessageID:       msg.ID,
		RecipientOnline: delivered,
		Timestamp:       time.Now().UTC(),
	})
}

// handleTyping forwards a typing indicator to the recipient when online.
// No persistence, no acknowledgment.
func (s *Session) handleTyping(in *Inbound) error {
	if in.RecipientID == "" {
		return nil
	}
	isTyping := true
	if in.IsTyping != nil {
		isTyping = *in.IsTyping
	}
	s.d.SendToUser(in.RecipientID, marshalFrame(typingFrame{
		Type:     TypeTyping,
		UserID:   s.client.UserID,
		UserName: s.client.Name,
		IsTyping: isTyping,
	}))
	return nil
}

func (s *Session) handleReadReceipt(ctx context.Context, in *Inbound) error {
	if in.MessageID == "" {
		return nil
	}
	senderID, readAt, err := s.store.MarkRead(ctx, in.MessageID, s.client.UserID)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			// Unknown message, or the caller is not its recipient.
			return nil
		}
		return s.sendError("failed to mark message as read")
	}
	s.d.SendToUser(senderID, marshalFrame(readReceiptFrame{
		Type:      TypeReadReceipt,
		MessageID: in.MessageID,
		ReadBy:    s.client.UserID,
		ReadAt:    readAt,
	}))
	return nil
}

func (s *Session) sendOnlineUsers() error {
	users := s.d.OnlineUsers(s.client.InstitutionID)
	return s.send(onlineUsersFrame{
		Type:  TypeOnlineUsers,
		Users: users,
		Count: len(users),
	})
}

// send enqueues a frame to the session's own connection. Failure here is a
// transport-level problem and ends the session.
func (s *Session) send(frame interface{}) error {
	return s.client.enqueue(marshalFrame(frame))
}

func (s *Session) sendError(msg string) error {
	return s.send(errorFrame{Type: TypeError, Message: msg})
}
