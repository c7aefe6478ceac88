package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Parth8155/SkillSwap/internal/model"
	"github.com/Parth8155/SkillSwap/internal/repo"

	"go.uber.org/zap"
)

var (
	ErrEmptyContent     = errors.New("message content is empty")
	ErrContentTooLong   = fmt.Errorf("message content exceeds %d characters", model.MaxContentLength)
	ErrNotParticipant   = errors.New("user is not a participant of this conversation")
	ErrForbidden        = errors.New("access denied to this conversation")
	ErrSelfConversation = errors.New("cannot create conversation with yourself")
)

// SendMessageInput is the send-message intent from the channel. The sender
// identity comes from the authenticated connection, never from the wire.
type SendMessageInput struct {
	ConversationID string
	ReceiverID     string
	Content        string
}

// ConversationView is a conversation annotated for one caller: populated
// participant summaries, the caller's own unread counter, and the
// last-message preview.
type ConversationView struct {
	ID           string              `json:"id"`
	Participants []model.UserSummary `json:"participants"`
	LastMessage  *model.Message      `json:"lastMessage,omitempty"`
	UnreadCount  int64               `json:"unreadCount"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// MessageService owns the ingestion pipeline and the REST-facing
// conversation/message operations.
type MessageService interface {
	// SendMessage validates and persists a message, then updates the owning
	// conversation (last-message pointer, receiver's unread counter). The
	// conversation must exist; a send against an unknown conversation is
	// rejected before anything is persisted.
	SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*model.Message, error)

	ListConversations(ctx context.Context, userID string) ([]ConversationView, error)
	GetOrCreateConversation(ctx context.Context, userID, participantID string) (*ConversationView, error)

	// ListMessages returns the conversation history in ascending creation
	// order. Side effect: every message addressed to the caller is marked
	// read and the caller's unread counter resets to zero. Not a pure query.
	ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error)

	ListCandidateUsers(ctx context.Context, userID string) ([]model.UserSummary, error)
}

type messageService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	users         repo.UserRepository
	logger        *zap.Logger
}

func NewMessageService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	users repo.UserRepository,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		logger:        logger,
	}
}

func (s *messageService) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > model.MaxContentLength {
		return nil, ErrContentTooLong
	}

	conversation, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(in.ReceiverID) {
		return nil, ErrNotParticipant
	}

	msg := &model.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     in.ReceiverID,
		Content:        content,
		Read:           false,
		Type:           model.MessageTypeText,
		CreatedAt:      time.Now().UTC(),
	}

	inserted, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Best effort past this point: the message is durable, and the unread
	// increment is atomic at the storage layer. A failure here leaves the
	// counter behind by one but never loses the message.
	if err := s.conversations.RecordMessage(ctx, conversation.ID, inserted.ID, in.ReceiverID); err != nil {
		s.logger.Error("message persisted but conversation update failed",
			zap.String("message_id", inserted.ID.Hex()),
			zap.String("conversation_id", in.ConversationID),
			zap.Error(err),
		)
	}

	return inserted, nil
}

func (s *messageService) ListConversations(ctx context.Context, userID string) ([]ConversationView, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Batch the participant lookups across all conversations.
	idSet := make(map[string]struct{})
	for i := range conversations {
		for _, pid := range conversations[i].ParticipantIDs {
			idSet[pid] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	summaries, err := s.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(conversations))
	for i := range conversations {
		c := &conversations[i]

		view := ConversationView{
			ID:          c.ID.Hex(),
			UnreadCount: c.UnreadFor(userID),
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
		for _, pid := range c.ParticipantIDs {
			if summary, ok := summaries[pid]; ok {
				view.Participants = append(view.Participants, summary)
			}
		}
		if c.LastMessageID != nil {
			// A dangling pointer leaves the preview empty.
			last, err := s.messages.GetByID(ctx, c.LastMessageID.Hex())
			if err != nil && !errors.Is(err, repo.ErrMessageNotFound) {
				return nil, err
			}
			view.LastMessage = last
		}

		views = append(views, view)
	}

	return views, nil
}

func (s *messageService) GetOrCreateConversation(ctx context.Context, userID, participantID string) (*ConversationView, error) {
	if participantID == "" {
		return nil, repo.ErrInvalidID
	}
	if participantID == userID {
		return nil, ErrSelfConversation
	}

	// The peer must be a real user; otherwise get-or-create would mint
	// conversations against dangling ids.
	if _, err := s.users.GetByID(ctx, participantID); err != nil {
		return nil, err
	}

	conversation, err := s.conversations.GetOrCreate(ctx, []string{userID, participantID})
	if err != nil {
		return nil, err
	}

	summaries, err := s.users.SummariesByIDs(ctx, conversation.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	view := ConversationView{
		ID:          conversation.ID.Hex(),
		UnreadCount: conversation.UnreadFor(userID),
		CreatedAt:   conversation.CreatedAt,
		UpdatedAt:   conversation.UpdatedAt,
	}
	for _, pid := range conversation.ParticipantIDs {
		if summary, ok := summaries[pid]; ok {
			view.Participants = append(view.Participants, summary)
		}
	}
	if conversation.LastMessageID != nil {
		last, err := s.messages.GetByID(ctx, conversation.LastMessageID.Hex())
		if err != nil && !errors.Is(err, repo.ErrMessageNotFound) {
			return nil, err
		}
		view.LastMessage = last
	}

	return &view, nil
}

func (s *messageService) ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrForbidden
	}

	messages, err := s.messages.ListByConversation(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	marked, err := s.messages.MarkRead(ctx, conversation.ID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.ResetUnread(ctx, conversation.ID, userID); err != nil {
		return nil, err
	}

	// The fetched snapshot predates the mark-read write; reflect the new
	// state in the returned list so callers see read == true.
	if marked > 0 {
		for i := range messages {
			if messages[i].ReceiverID == userID {
				messages[i].Read = true
			}
		}
	}

	return messages, nil
}

func (s *messageService) ListCandidateUsers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	users, err := s.users.ListOthers(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}
