package approuters

import (
	"github.com/Parth8155/SkillSwap/internal/auth"
	"github.com/Parth8155/SkillSwap/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MessageRouters wires the messaging REST surface. Every route requires a
// verified bearer credential; conversation-level authorization happens in
// the service layer.
func MessageRouters(router *gin.Engine, container *configuration.Container) {
	messageRoute := router.Group("/api/messages")
	messageRoute.Use(auth.Middleware(container.Verifier))
	{
		messageRoute.GET("/conversations", container.MessageHandler.GetConversations)
		messageRoute.POST("/conversations", container.MessageHandler.CreateConversation)
		messageRoute.GET("/conversations/:conversationId", container.MessageHandler.GetConversationMessages)
		messageRoute.GET("/users", container.MessageHandler.GetUsers)
	}
}
