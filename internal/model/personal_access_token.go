package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PersonalAccessToken is a long-lived API credential. The token string is
// globally unique and is returned to the caller only at creation time.
type PersonalAccessToken struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	Name       string        `bson:"name"`
	Token      string        `bson:"token"`
	ExpiresAt  time.Time     `bson:"expires_at,omitempty"`
	LastUsedAt time.Time     `bson:"last_used_at,omitempty"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}
