package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Parth8155/SkillSwap/internal/db"
	"github.com/Parth8155/SkillSwap/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
	ListOthers(ctx context.Context, userID string) ([]model.User, error)
	SummariesByIDs(ctx context.Context, userIDs []string) (map[string]model.UserSummary, error)
	UpdateStatus(ctx context.Context, userID, status string, lastActive time.Time) error
}

type userRepository struct {
	users  *db.Repository[model.User]
	logger *zap.Logger
}

func NewUserRepository(users *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		users:  users,
		logger: logger,
	}
}

// GetByID fetches a user document by hex id.
func (r *userRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

// ListOthers returns every user except userID, sorted by name. Feeds the
// candidate list for starting new conversations.
func (r *userRepository) ListOthers(ctx context.Context, userID string) ([]model.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Ne("_id", oid).Build()

	users, err := r.users.FindAll(ctx, filter, db.FindParams{SortBy: "name"})
	if err != nil {
		r.logger.Error("failed to list users",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SummariesByIDs fetches summary profiles for the given hex ids, keyed by id.
// Unknown ids are simply absent from the result.
func (r *userRepository) SummariesByIDs(ctx context.Context, userIDs []string) (map[string]model.UserSummary, error) {
	summaries := make(map[string]model.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return summaries, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	oids := make([]interface{}, 0, len(userIDs))
	for _, id := range userIDs {
		f := db.NewFilter().ObjectID("_id", id).Build()
		if oid, ok := f["_id"]; ok {
			oids = append(oids, oid)
		}
	}

	filter := db.NewFilter().In("_id", oids).Build()
	users, err := r.users.FindAll(ctx, filter, db.FindParams{})
	if err != nil {
		return nil, fmt.Errorf("fetch user summaries: %w", err)
	}

	for i := range users {
		summaries[users[i].ID.Hex()] = users[i].Summary()
	}
	return summaries, nil
}

// UpdateStatus persists the user's presence status and last-active stamp.
func (r *userRepository) UpdateStatus(ctx context.Context, userID, status string, lastActive time.Time) error {
	if userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.users.UpdateByID(ctx, userID, bson.M{
		"status":      status,
		"last_active": lastActive,
	})
	if err != nil {
		r.logger.Error("failed to persist user status",
			zap.String("user_id", userID),
			zap.String("status", status),
			zap.Error(err),
		)
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
