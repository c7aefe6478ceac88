package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a messaging relationship between two or more users.
// The participant set is stored sorted so the unordered pair maps to exactly
// one document (get-or-create is keyed on it).
type Conversation struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ParticipantIDs []string            `json:"participantIds" bson:"participant_ids"`
	LastMessageID  *primitive.ObjectID `json:"lastMessageId" bson:"last_message_id"`
	UnreadCount    map[string]int64    `json:"unreadCount" bson:"unread_count"`
	CreatedAt      time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant reports whether userID is part of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread counter for userID, treating a missing entry
// as zero.
func (c *Conversation) UnreadFor(userID string) int64 {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}
