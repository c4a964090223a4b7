// Package v1 defines the Gather Chat Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the session handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeEventJoin joins an event's chat room (client -> server) and is echoed back.
	TypeEventJoin = "event_join"

	// TypeMessageSend requests sending a new message (client -> server).
	TypeMessageSend = "message_send"
	// TypeMessageSent acknowledges a newly stored message (server -> sender only).
	TypeMessageSent = "message_sent"
	// TypeMessageAck acknowledges a duplicate send, resolving to the original
	// stored message (server -> sender only).
	TypeMessageAck = "message_ack"
	// TypeMessageNew broadcasts a newly accepted message (server -> room members).
	TypeMessageNew = "message_new"

	// TypeMessageDelete requests soft deletion of a message (client -> server).
	TypeMessageDelete = "message_delete"
	// TypeMessageDeleted broadcasts a deletion notice (server -> room members).
	TypeMessageDeleted = "message_deleted"

	// TypeDeliveredAck reports that a recipient received a message (client -> server).
	TypeDeliveredAck = "delivered_ack"
	// TypeStatusUpdate broadcasts a delivery-status transition (server -> room members).
	TypeStatusUpdate = "status_update"

	// TypeReadAck marks an event's messages read by a user (client -> server).
	TypeReadAck = "read_ack"

	// TypeHistoryFetch requests chat history (client -> server).
	TypeHistoryFetch = "history_fetch"
	// TypeHistoryChunk returns a window of history (server -> client).
	TypeHistoryChunk = "history_chunk"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeEventJoin,
		TypeMessageSend,
		TypeMessageSent,
		TypeMessageAck,
		TypeMessageNew,
		TypeMessageDelete,
		TypeMessageDeleted,
		TypeDeliveredAck,
		TypeStatusUpdate,
		TypeReadAck,
		TypeHistoryFetch,
		TypeHistoryChunk,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// HelloPayload is sent by the client to initiate a session.
// UserID is the caller identity supplied by the auth collaborator; the chat
// core trusts it as-is.
type HelloPayload struct {
	UserID string `json:"user_id"`
}

// HelloAckPayload must carry SessionID (used by clients and smoke tooling).
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// EventJoinPayload requests membership in an event's chat room.
type EventJoinPayload struct {
	EventID string `json:"event_id"`
}

// MessageSendPayload requests sending a message into an event's chat.
// Sender identity fields are a snapshot taken at send time.
type MessageSendPayload struct {
	EventID      string `json:"event_id"`
	ClientMsgID  string `json:"client_msg_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
	Text         string `json:"text"`
	ReplyTo      string `json:"reply_to,omitempty"`
}

// MessagePayload is the canonical stored-message representation on the wire.
// It carries both IsDeleted and the duplicate Deleted field for consumer
// compatibility.
type MessagePayload struct {
	EventID      string     `json:"event_id"`
	MessageID    string     `json:"message_id"`
	ClientMsgID  string     `json:"client_msg_id"`
	Seq          int64      `json:"seq"`
	SenderID     string     `json:"sender_id"`
	SenderName   string     `json:"sender_name"`
	SenderAvatar string     `json:"sender_avatar,omitempty"`
	Text         string     `json:"text"`
	ReplyTo      string     `json:"reply_to,omitempty"`
	Status       string     `json:"status"`
	IsDeleted    bool       `json:"is_deleted"`
	Deleted      bool       `json:"deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	ServerTS     time.Time  `json:"server_ts"`
}

// MessageDeletePayload requests soft deletion of a stored message.
type MessageDeletePayload struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
}

// MessageDeletedPayload is broadcast when a message is soft-deleted.
type MessageDeletedPayload struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
	IsDeleted bool   `json:"is_deleted"`
	Deleted   bool   `json:"deleted"`
}

// DeliveredAckPayload reports receipt of a message by some recipient.
type DeliveredAckPayload struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// StatusUpdatePayload is broadcast when a message's delivery status advances.
type StatusUpdatePayload struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// ReadAckPayload marks all current messages of an event read by UserID.
type ReadAckPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// HistoryFetchPayload requests a history window for an event's chat.
// Skip/Limit slice the seq-ascending order; a zero Limit returns everything
// after Skip (bounded by the server's maximum).
type HistoryFetchPayload struct {
	EventID string `json:"event_id"`
	Skip    int    `json:"skip,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// HistoryChunkPayload returns messages for a history fetch request.
type HistoryChunkPayload struct {
	EventID  string           `json:"event_id"`
	Messages []MessagePayload `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
