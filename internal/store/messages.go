package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested message doesn't exist.
var ErrNotFound = errors.New("message not found")

// ErrForbidden is returned when a user tries to delete a message they
// didn't send.
var ErrForbidden = errors.New("not the sender of this message")

// Message is a stored chat message.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    string
	MediaURL   string
	MediaType  string
	IsRead     bool
	CreatedAt  time.Time
}

// AddMessage inserts a message and returns it with its assigned id.
// Message ids are assigned by SQLite and increase monotonically per
// database, which is what the client's high-water mark relies on.
func (s *Store) AddMessage(senderID, receiverID int64, content, mediaURL, mediaType string) (*Message, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO messages (sender_id, receiver_id, content, media_url, media_type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, senderID, receiverID, content, mediaURL, mediaType, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		MediaURL:   mediaURL,
		MediaType:  mediaType,
		CreatedAt:  now,
	}, nil
}

// ConversationAfter returns the messages between userID and peerID with
// id greater than afterID, oldest first, and marks the returned inbound
// ones as read.
func (s *Store) ConversationAfter(userID, peerID, afterID int64) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, sender_id, receiver_id, content, media_url, media_type, is_read, created_at
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		  AND id > ?
		ORDER BY id ASC
	`, userID, peerID, peerID, userID, afterID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var content, mediaURL, mediaType sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &content, &mediaURL, &mediaType, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Content = content.String
		m.MediaURL = mediaURL.String
		m.MediaType = mediaType.String
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.markRead(userID, peerID, afterID); err != nil {
		return nil, err
	}

	return messages, nil
}

// markRead flags inbound messages newer than afterID as read.
func (s *Store) markRead(userID, peerID, afterID int64) error {
	_, err := s.db.Exec(`
		UPDATE messages SET is_read = 1
		WHERE sender_id = ? AND receiver_id = ? AND id > ? AND is_read = 0
	`, peerID, userID, afterID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// GetMessage retrieves one message by id.
func (s *Store) GetMessage(id int64) (*Message, error) {
	var m Message
	var content, mediaURL, mediaType sql.NullString
	err := s.db.QueryRow(`
		SELECT id, sender_id, receiver_id, content, media_url, media_type, is_read, created_at
		FROM messages
		WHERE id = ?
	`, id).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &content, &mediaURL, &mediaType, &m.IsRead, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	m.Content = content.String
	m.MediaURL = mediaURL.String
	m.MediaType = mediaType.String
	return &m, nil
}

// DeleteMessage removes a message. Only its sender may delete it.
func (s *Store) DeleteMessage(id, requesterID int64) error {
	m, err := s.GetMessage(id)
	if err != nil {
		return err
	}
	if m.SenderID != requesterID {
		return ErrForbidden
	}

	_, err = s.db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// CountMessages returns the total number of stored messages.
func (s *Store) CountMessages() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
