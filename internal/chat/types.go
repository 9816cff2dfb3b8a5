// Package chat implements the message-synchronization engine for a
// two-party conversation: polling retrieval, idempotent merge, bounded
// rendering, and backoff-based recovery from transient failures.
package chat

import (
	"context"
	"time"
)

// MediaKind classifies a media attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

// Message is a single chat message as returned by the server.
// Immutable once received; timestamps are server-formatted strings the
// engine treats as opaque.
type Message struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"sender_id"`
	ReceiverID    int64     `json:"receiver_id"`
	Content       string    `json:"content"`
	MediaURL      string    `json:"media_url,omitempty"`
	MediaType     MediaKind `json:"media_type,omitempty"`
	IsRead        bool      `json:"is_read"`
	Timestamp     string    `json:"timestamp"`
	FullTimestamp string    `json:"full_timestamp,omitempty"`
	SenderName    string    `json:"sender_username,omitempty"`
}

// Attachment is an outbound file to send alongside (or instead of) text.
type Attachment struct {
	Filename string
	Data     []byte
}

// Transport performs the network requests the engine depends on.
type Transport interface {
	// FetchMessages retrieves messages newer than after for the
	// conversation with peerID. The nonce defeats intermediary caching.
	FetchMessages(ctx context.Context, peerID, after int64, nonce string) ([]Message, error)

	// SendMessage sends text and/or one attachment and returns the
	// created message.
	SendMessage(ctx context.Context, peerID int64, text string, attachment *Attachment) (*Message, error)

	// DeleteMessage deletes a single message by id.
	DeleteMessage(ctx context.Context, id int64) error
}

// SessionState represents the current state of a conversation session.
type SessionState string

const (
	StateInactive         SessionState = "inactive"
	StatePolling          SessionState = "polling"
	StateAwaitingResponse SessionState = "awaiting_response"
	StateBackingOff       SessionState = "backing_off"
	StateSuspended        SessionState = "suspended"
)

// EventType identifies the type of event.
type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventBatchMerged      EventType = "batch_merged"
	EventConnError        EventType = "conn_error"
	EventConnErrorCleared EventType = "conn_error_cleared"
)

// Event represents something that happened in the session.
type Event struct {
	Type      EventType
	PeerID    int64
	State     *StateChangeData
	Merge     *MergeData
	Error     *ErrorData
	Timestamp time.Time
}

// StateChangeData contains data for state change events.
type StateChangeData struct {
	OldState SessionState
	NewState SessionState
}

// MergeData contains data for batch merge events.
type MergeData struct {
	Fetched   int
	Merged    int
	HighWater int64
}

// ErrorData contains data for error events.
type ErrorData struct {
	Error string
}
