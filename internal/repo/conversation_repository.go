package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Parth8155/SkillSwap/internal/db"
	"github.com/Parth8155/SkillSwap/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type conversationRepository struct {
	conversations *db.Repository[model.Conversation]
	logger        *zap.Logger
}

type ConversationRepository interface {
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	GetOrCreate(ctx context.Context, participantIDs []string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	RecordMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, receiverID string) error
	ResetUnread(ctx context.Context, conversationID primitive.ObjectID, userID string) error
}

func NewConversationRepository(conversations *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		conversations: conversations,
		logger:        logger,
	}
}

// GetByID fetches a conversation document by its hex id.
func (r *conversationRepository) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(conversationID); err != nil {
		return nil, fmt.Errorf("invalid conversation ID format: %w", ErrConversationNotFound)
	}

	conversation, err := r.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("conversation not found",
				zap.String("conversation_id", conversationID),
			)
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return conversation, nil
}

// GetOrCreate returns the conversation for the exact unordered participant
// set, creating it atomically on first use. Repeated calls with the same set
// always return the same document.
func (r *conversationRepository) GetOrCreate(ctx context.Context, participantIDs []string) (*model.Conversation, error) {
	if len(participantIDs) < 2 {
		return nil, fmt.Errorf("conversation needs at least two participants, got %d", len(participantIDs))
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	ids := make([]string, len(participantIDs))
	copy(ids, participantIDs)
	sort.Strings(ids)

	now := time.Now().UTC()
	filter := db.NewFilter().SetEquals("participant_ids", ids).Build()
	update := bson.M{
		"$setOnInsert": bson.M{
			"participant_ids": ids,
			"last_message_id": nil,
			"unread_count":    bson.M{},
			"created_at":      now,
			"updated_at":      now,
		},
	}

	conversation, err := r.conversations.FindOneAndUpsert(ctx, filter, update)
	if err != nil {
		r.logger.Error("get-or-create conversation failed",
			zap.Strings("participant_ids", ids),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}

	return conversation, nil
}

// ListForUser returns every conversation the user participates in, most
// recently updated first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	conversations, err := r.conversations.FindAll(ctx, filter, db.FindParams{
		SortBy:   "updated_at",
		SortDesc: true,
	})
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return conversations, nil
}

// RecordMessage advances the conversation's last-message pointer and bumps
// the receiver's unread counter in one server-side update. The $inc makes
// concurrent sends to the same receiver safe against lost updates.
func (r *conversationRepository) RecordMessage(ctx context.Context, conversationID, messageID primitive.ObjectID, receiverID string) error {
	if receiverID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"last_message_id": messageID,
			"updated_at":      time.Now().UTC(),
		},
		"$inc": bson.M{
			"unread_count." + receiverID: int64(1),
		},
	}

	result, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		r.logger.Error("failed to record message on conversation",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("receiver_id", receiverID),
			zap.Error(err),
		)
		return fmt.Errorf("record message: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// ResetUnread zeroes the user's unread counter.
func (r *conversationRepository) ResetUnread(ctx context.Context, conversationID primitive.ObjectID, userID string) error {
	if userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"unread_count." + userID: int64(0),
		},
	}

	result, err := r.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		r.logger.Error("failed to reset unread count",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("reset unread: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConversationNotFound
	}

	return nil
}
