package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presence/status values shared between the durable user record and the
// in-memory presence registry.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

// ValidStatus reports whether s is one of the known presence statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// User represents a user document in MongoDB. Account management lives in a
// separate service; the messaging core only reads profiles and writes the
// status/last_active pair.
type User struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name       string             `json:"name" bson:"name"`
	Email      string             `json:"email" bson:"email"`
	Role       string             `json:"role" bson:"role"`
	Avatar     string             `json:"avatar" bson:"avatar"`
	Status     string             `json:"status" bson:"status"`
	LastActive time.Time          `json:"lastActive" bson:"last_active"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updated_at"`
}

// UserSummary is the slimmed-down profile embedded in conversation listings
// and the candidate-user endpoint.
type UserSummary struct {
	ID     string `json:"id" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Email  string `json:"email" bson:"email"`
	Role   string `json:"role" bson:"role"`
	Avatar string `json:"avatar" bson:"avatar"`
	Status string `json:"status" bson:"status"`
}

// Summary projects a full user document onto its summary form.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Avatar: u.Avatar,
		Status: u.Status,
	}
}
