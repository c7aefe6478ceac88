package configuration

import (
	"context"
	"fmt"
	"time"

	"github.com/Parth8155/SkillSwap/internal/auth"
	"github.com/Parth8155/SkillSwap/internal/db"
	"github.com/Parth8155/SkillSwap/internal/handler"
	"github.com/Parth8155/SkillSwap/internal/hub"
	"github.com/Parth8155/SkillSwap/internal/model"
	"github.com/Parth8155/SkillSwap/internal/presence"
	"github.com/Parth8155/SkillSwap/internal/repo"
	"github.com/Parth8155/SkillSwap/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	MessageHandler handler.MessageHandler
	Hub            *hub.Hub
	Verifier       *auth.TokenVerifier
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	conversationRepo := repo.NewConversationRepository(
		db.NewRepository[model.Conversation](con, config.Mongo.ConversationsCollection), logger)
	userRepo := repo.NewUserRepository(
		db.NewRepository[model.User](con, config.Mongo.UsersCollection), logger)

	messageService := service.NewMessageService(conversationRepo, messageRepo, userRepo, logger)
	messageHandler := handler.NewMessageHandler(messageService, logger)

	verifier := auth.NewTokenVerifier(config.Auth.JwtSecret)
	registry := presence.NewRegistry()

	channelHub := hub.NewHub(hub.Options{
		Presence:         registry,
		Verifier:         verifier,
		Messages:         messageService,
		Users:            userRepo,
		AllowedOrigins:   config.Server.AllowedOrigins,
		HandshakeTimeout: time.Duration(config.Auth.HandshakeTimeoutSeconds) * time.Second,
		Logger:           logger,
	})

	return &Container{
		MessageHandler: messageHandler,
		Hub:            channelHub,
		Verifier:       verifier,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all channel connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
