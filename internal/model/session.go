package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Session represents one issued access/refresh token pair. The document id
// equals the sessionId claim carried by both tokens. A session becomes
// permanently inert once revoked or past its expiry.
type Session struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	UserID         string        `bson:"user_id"`
	RefreshToken   string        `bson:"refresh_token"`
	ExpiresAt      time.Time     `bson:"expires_at"`
	Revoked        bool          `bson:"revoked"`
	RevokedAt      time.Time     `bson:"revoked_at,omitempty"`
	LastActivityAt time.Time     `bson:"last_activity_at"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}
