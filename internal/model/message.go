package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxContentLength bounds message content after trimming.
const MaxContentLength = 1000

// Message type discriminators. System and swap-request messages share the
// chat transport but render differently on the client.
const (
	MessageTypeText        = "text"
	MessageTypeSwapRequest = "swap-request"
	MessageTypeSystem      = "system"
)

// Message represents one chat message in MongoDB. Immutable after insert
// except for the read flag, which flips when the receiver fetches history.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	ReceiverID     string             `json:"receiverId" bson:"receiver_id"`
	Content        string             `json:"content" bson:"content"`
	Read           bool               `json:"read" bson:"read"`
	Type           string             `json:"type" bson:"type"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
}
