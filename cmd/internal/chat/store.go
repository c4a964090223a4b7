package chat

import (
	"context"
	"errors"
	"time"
)

// Status is the delivery state of a stored message.
// It only moves forward: sent -> delivered.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
)

// ErrNotFound reports that the targeted chat log or message does not exist.
var ErrNotFound = errors.New("chat: not found")

// StoredMessage is the canonical persisted message representation.
//
// Seq is the per-event monotonic sequence and the authoritative read order.
// ServerTS is wall-clock metadata only; it is not used for ordering because
// near-simultaneous appends from different connections would make it
// ambiguous.
type StoredMessage struct {
	EventID      string
	MessageID    string
	ClientMsgID  string
	Seq          int64
	SenderID     string
	SenderName   string
	SenderAvatar string
	Text         string
	ReplyTo      string
	Status       Status
	Deleted      bool
	DeletedAt    *time.Time
	ServerTS     time.Time
}

// MessageStore persists and queries per-event chat logs.
//
// Requirements:
//   - Idempotency per (event_id, client_msg_id)
//   - Monotonic seq per event (no gaps for duplicates)
//   - Appends to one event's log are serialized (no lost updates)
//   - History ordered by seq ASC
//   - Messages are never physically removed; deletion is a flag
type MessageStore interface {
	AppendMessage(ctx context.Context, in AppendMessageInput) (AppendMessageResult, error)
	FetchHistory(ctx context.Context, in FetchHistoryInput) (FetchHistoryResult, error)
	MarkDelivered(ctx context.Context, in MarkDeliveredInput) (MarkDeliveredResult, error)
	MarkDeleted(ctx context.Context, in MarkDeletedInput) (MarkDeletedResult, error)
	MarkRead(ctx context.Context, eventID, userID string) error
	Preview(ctx context.Context, eventID, viewerID string) (PreviewResult, error)
	Close() error
}

// AppendMessageInput describes a message append request.
type AppendMessageInput struct {
	EventID      string
	ClientMsgID  string
	SenderID     string
	SenderName   string
	SenderAvatar string
	Text         string
	ReplyTo      string
	Now          time.Time
}

// AppendMessageResult is the append operation result.
// Duplicated is true when the (event_id, client_msg_id) pair was already
// persisted; Stored is then the original message.
type AppendMessageResult struct {
	Stored     StoredMessage
	Duplicated bool
}

// FetchHistoryInput describes a history query request.
// Skip/Limit slice the seq-ascending order. Limit <= 0 returns everything
// after Skip.
type FetchHistoryInput struct {
	EventID string
	Skip    int
	Limit   int
}

// FetchHistoryResult contains the retrieved history window.
type FetchHistoryResult struct {
	Messages []StoredMessage
	HasMore  bool
}

// MarkDeliveredInput identifies the message to advance and the acking user.
type MarkDeliveredInput struct {
	EventID   string
	MessageID string
	UserID    string
}

// MarkDeliveredResult reports the post-transition message.
// Changed is false when the message was already delivered (no-op ack);
// callers must not re-broadcast in that case.
type MarkDeliveredResult struct {
	Stored  StoredMessage
	Changed bool
}

// MarkDeletedInput identifies the message to soft-delete.
type MarkDeletedInput struct {
	EventID   string
	MessageID string
	Now       time.Time
}

// MarkDeletedResult reports the tombstoned message.
// Changed is false when the message was already deleted.
type MarkDeletedResult struct {
	Stored  StoredMessage
	Changed bool
}

// PreviewResult is the per-viewer summary used by list views.
// LastMessage is nil (and all derived fields zero) for empty or absent logs.
type PreviewResult struct {
	LastMessage     *StoredMessage
	UnreadCount     int
	LastMessageTime time.Time
	LastSenderName  string
	PreviewText     string
	IsOwnMessage    bool
}
