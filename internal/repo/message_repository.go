package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Parth8155/SkillSwap/internal/db"
	"github.com/Parth8155/SkillSwap/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type messageRepository struct {
	messages *db.Repository[model.Message]
	logger   *zap.Logger
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, messageID string) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID primitive.ObjectID, receiverID string) (int64, error)
}

func NewMessageRepository(messages *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		messages: messages,
		logger:   logger,
	}
}

// Insert persists a new message, retrying transient Mongo failures with
// capped exponential backoff. The returned message carries the inserted id.
func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		result, err := m.messages.Create(ctx, *msg)
		if err == nil {
			inserted := *msg
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				inserted.ID = oid
			}

			m.logger.Debug("message inserted",
				zap.String("message_id", inserted.ID.Hex()),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return &inserted, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)

	return nil, fmt.Errorf("insert message failed: %w", lastErr)
}

// GetByID fetches one message by hex id. Used to populate last-message
// previews on conversation listings; a missing document is ErrMessageNotFound.
func (m *messageRepository) GetByID(ctx context.Context, messageID string) (*model.Message, error) {
	if messageID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return msg, nil
}

// ListByConversation returns the conversation's full message log in
// ascending creation order, the display order.
func (m *messageRepository) ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message list",
				zap.String("conversation_id", conversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
		}

		messages, err := m.messages.FindAll(ctx, filter, db.FindParams{
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			return messages, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, conversationID.Hex())
}

// MarkRead flips the read flag on every unread message addressed to
// receiverID in the conversation. Returns how many were updated.
func (m *messageRepository) MarkRead(ctx context.Context, conversationID primitive.ObjectID, receiverID string) (int64, error) {
	if receiverID == "" {
		return 0, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := bson.M{
		"conversation_id": conversationID,
		"receiver_id":     receiverID,
		"read":            false,
	}
	update := bson.M{"$set": bson.M{"read": true}}

	result, err := m.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		m.logger.Error("failed to mark messages read",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("receiver_id", receiverID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark read: %w", err)
	}

	return result.ModifiedCount, nil
}

func (m *messageRepository) handleReadError(err error, conversationID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("list messages failed: %w", err)
}
