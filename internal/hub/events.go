package hub

import (
	"context"
	"errors"
	"time"

	"github.com/Parth8155/SkillSwap/internal/event"
	"github.com/Parth8155/SkillSwap/internal/model"
	"github.com/Parth8155/SkillSwap/internal/repo"
	"github.com/Parth8155/SkillSwap/internal/service"

	"go.uber.org/zap"
)

// handleEvent processes one client event. Errors are acknowledged to the
// sending connection and logged; they never tear down the connection or
// surface to other clients.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventJoinConversation:
		h.handleJoin(ev, c)
	case event.EventLeaveConversation:
		h.handleLeave(ev, c)
	case event.EventTyping:
		h.handleTyping(ev, c)
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventUpdateStatus:
		h.handleUpdateStatus(ev, c)
	default:
		h.logger.Warn("unknown event type",
			zap.String("event", ev.Event),
			zap.String("connection_id", c.ID),
		)
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+ev.Event)
	}
}

func (h *Hub) handleJoin(ev event.WsEvent, c *Client) {
	var p event.ConversationPayload
	if err := ev.DecodePayload(&p); err != nil || p.ConversationID == "" {
		c.sendError("INVALID_PAYLOAD", "joinConversation requires a conversationId")
		return
	}

	key := ConversationRoom(p.ConversationID)
	h.joinRoom(key, c)
	c.trackRoom(key)

	h.logger.Debug("joined conversation room",
		zap.String("user_id", c.userID),
		zap.String("room", key),
	)
}

func (h *Hub) handleLeave(ev event.WsEvent, c *Client) {
	var p event.ConversationPayload
	if err := ev.DecodePayload(&p); err != nil || p.ConversationID == "" {
		c.sendError("INVALID_PAYLOAD", "leaveConversation requires a conversationId")
		return
	}

	key := ConversationRoom(p.ConversationID)
	h.leaveRoom(key, c)
	c.untrackRoom(key)
}

// handleTyping relays the typing state to the receiver's private room only.
// Nothing is persisted.
func (h *Hub) handleTyping(ev event.WsEvent, c *Client) {
	var p event.TypingPayload
	if err := ev.DecodePayload(&p); err != nil || p.ReceiverID == "" {
		c.sendError("INVALID_PAYLOAD", "typing requires a receiverId")
		return
	}

	out, err := event.New(event.EventUserTyping, event.UserTypingPayload{
		UserID:   c.userID,
		IsTyping: p.IsTyping,
	})
	if err != nil {
		return
	}

	h.broadcastToRoom(UserRoom(p.ReceiverID), out, "")
}

// handleSendMessage runs the ingestion pipeline and fans the persisted
// message out to the conversation room. Failures are acknowledged back to
// the sender explicitly, never dropped on the floor.
func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	var p event.SendMessagePayload
	if err := ev.DecodePayload(&p); err != nil {
		c.sendError("INVALID_PAYLOAD", "malformed sendMessage payload")
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, ingestTimeout)
	defer cancel()

	msg, err := h.messages.SendMessage(ctx, c.userID, service.SendMessageInput{
		ConversationID: p.ConversationID,
		ReceiverID:     p.ReceiverID,
		Content:        p.Content,
	})
	if err != nil {
		h.logger.Warn("send message failed",
			zap.String("user_id", c.userID),
			zap.String("conversation_id", p.ConversationID),
			zap.Error(err),
		)
		c.sendError(sendErrorCode(err), err.Error())
		return
	}

	out, err := event.New(event.EventMessageReceived, event.MessageReceivedPayload{
		ID:             msg.ID.Hex(),
		ConversationID: p.ConversationID,
		SenderID:       c.userID,
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt,
	})
	if err != nil {
		return
	}

	// All room members get the event, the sender included; clients
	// de-duplicate on the message id.
	h.broadcastToRoom(ConversationRoom(p.ConversationID), out, "")
}

func (h *Hub) handleUpdateStatus(ev event.WsEvent, c *Client) {
	var p event.UpdateStatusPayload
	if err := ev.DecodePayload(&p); err != nil || !model.ValidStatus(p.Status) {
		c.sendError("INVALID_STATUS", "status must be one of online, away, busy, offline")
		return
	}

	h.presence.SetStatus(c.userID, p.Status)

	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()
	if err := h.users.UpdateStatus(ctx, c.userID, p.Status, time.Now().UTC()); err != nil {
		h.logger.Error("failed to persist status change",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
	}

	out, err := event.New(event.EventUserStatusUpdate, event.StatusUpdatePayload{
		UserID: c.userID,
		Status: p.Status,
	})
	if err != nil {
		return
	}
	h.broadcastAll(out, c.ID)
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, repo.ErrConversationNotFound):
		return "CONVERSATION_NOT_FOUND"
	case errors.Is(err, service.ErrEmptyContent):
		return "EMPTY_CONTENT"
	case errors.Is(err, service.ErrContentTooLong):
		return "CONTENT_TOO_LONG"
	case errors.Is(err, service.ErrNotParticipant):
		return "RECEIVER_NOT_PARTICIPANT"
	default:
		return "SEND_FAILED"
	}
}
