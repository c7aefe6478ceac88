package handler

import (
	"errors"
	"net/http"

	"github.com/Parth8155/SkillSwap/internal/auth"
	"github.com/Parth8155/SkillSwap/internal/repo"
	"github.com/Parth8155/SkillSwap/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler exposes the messaging core to the REST surface: the
// conversation list, get-or-create, history (with read-marking side effect),
// and the candidate-user list.
type MessageHandler interface {
	GetConversations(c *gin.Context)
	GetConversationMessages(c *gin.Context)
	CreateConversation(c *gin.Context)
	GetUsers(c *gin.Context)
}

type messageHandler struct {
	service service.MessageService
	logger  *zap.Logger
}

func NewMessageHandler(service service.MessageService, logger *zap.Logger) MessageHandler {
	return &messageHandler{
		service: service,
		logger:  logger,
	}
}

// GetConversations lists the caller's conversations, most recently updated
// first, annotated with the caller's unread counts.
func (h *messageHandler) GetConversations(c *gin.Context) {
	userID := auth.UserID(c)

	views, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error while fetching conversations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
	})
}

// GetConversationMessages returns the conversation history in ascending
// order. Side effect: the caller's unread counter resets and their messages
// flip to read.
func (h *messageHandler) GetConversationMessages(c *gin.Context) {
	userID := auth.UserID(c)
	conversationID := c.Param("conversationId")

	messages, err := h.service.ListMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Access denied to this conversation",
			})
		case errors.Is(err, repo.ErrConversationNotFound):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Access denied to this conversation",
			})
		default:
			h.logger.Error("list messages failed",
				zap.String("user_id", userID),
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Server error while fetching messages",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

type createConversationRequest struct {
	ParticipantID string `json:"participantId"`
}

// CreateConversation is the idempotent get-or-create keyed on the unordered
// participant pair.
func (h *messageHandler) CreateConversation(c *gin.Context) {
	userID := auth.UserID(c)

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Participant ID is required",
		})
		return
	}

	view, err := h.service.GetOrCreateConversation(c.Request.Context(), userID, req.ParticipantID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfConversation):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Cannot create conversation with yourself",
			})
		case errors.Is(err, repo.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Participant not found",
			})
		default:
			h.logger.Error("create conversation failed",
				zap.String("user_id", userID),
				zap.String("participant_id", req.ParticipantID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Server error while creating conversation",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    view,
	})
}

// GetUsers lists all users except the caller, for starting new conversations.
func (h *messageHandler) GetUsers(c *gin.Context) {
	userID := auth.UserID(c)

	users, err := h.service.ListCandidateUsers(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list users failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Server error while fetching users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
	})
}
