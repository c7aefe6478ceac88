package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client → server events.
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventTyping            = "typing"
	EventSendMessage       = "sendMessage"
	EventUpdateStatus      = "updateStatus"
)

// Server → client events.
const (
	EventUserOnline       = "userOnline"
	EventUserOffline      = "userOffline"
	EventUserTyping       = "userTyping"
	EventMessageReceived  = "messageReceived"
	EventUserStatusUpdate = "userStatusUpdate"
	EventError            = "error"
)

// WsEvent is the envelope for every message crossing the channel, in either
// direction. Payload shape is fixed per event name; see the payload types
// below.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the envelope payload into dst.
func (e WsEvent) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %q: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("event %q: %w", e.Event, err)
	}
	return nil
}

// New builds an envelope around payload. It fails only if payload cannot be
// marshalled, which for the closed payload set below means a programming
// error.
func New(eventName string, payload any) (WsEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, fmt.Errorf("marshal %q payload: %w", eventName, err)
	}
	return WsEvent{Event: eventName, Payload: data}, nil
}

// --- Client → server payloads ---

// ConversationPayload carries the room key target for join/leave.
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// TypingPayload is relayed to the receiver's private room, never persisted.
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// SendMessagePayload is the send-message intent; the sender identity comes
// from the authenticated connection, not the payload.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
	Content        string `json:"content"`
}

// UpdateStatusPayload requests a presence + durable status change.
type UpdateStatusPayload struct {
	Status string `json:"status"`
}

// --- Server → client payloads ---

// PresencePayload announces a user coming online or going offline.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// UserTypingPayload mirrors a peer's typing-state event.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// MessageReceivedPayload is the fan-out form of a persisted message. All room
// members receive it, the sender included; clients de-duplicate on ID.
type MessageReceivedPayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// StatusUpdatePayload broadcasts a user's new status.
type StatusUpdatePayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// ErrorPayload acknowledges a failed client event back to its sender only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
