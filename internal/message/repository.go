package message

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by MarkRead when the message does not exist or
// the reader is not its recipient.
var ErrNotFound = errors.New("message: not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save persists one message. The caller fills in ID and CreatedAt.
func (r *Repository) Save(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, institution_id, sender_id, recipient_id, subject, content, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.InstitutionID, m.SenderID, m.RecipientID,
		m.Subject, m.Content, m.Priority, m.CreatedAt)
	return err
}

// MarkRead flags the message as read, but only when readerID is its
// recipient. It returns the sender ID and the read timestamp so the caller
// can notify the sender.
func (r *Repository) MarkRead(ctx context.Context, messageID, readerID string) (string, time.Time, error) {
	readAt := time.Now().UTC()
	query := `
		UPDATE messages
		SET read = TRUE, read_at = $1
		WHERE id = $2 AND recipient_id = $3
		RETURNING sender_id
	`
	var senderID string
	err := r.db.QueryRowContext(ctx, query, readAt, messageID, readerID).Scan(&senderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, err
	}
	return senderID, readAt, nil
}

// UnreadCount returns how many unread messages are waiting for userID.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read = FALSE`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
