package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Auth method types.
const (
	AuthMethodEmail  = "email"
	AuthMethodSMS    = "sms"
	AuthMethodWallet = "wallet"
	AuthMethodOAuth  = "oauth"
)

// AuthMethod binds a user to one proof-of-identity channel. The identifier
// (email address, phone number, wallet address or provider user id) is
// immutable once created.
type AuthMethod struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	Type       string        `bson:"type"`
	Provider   string        `bson:"provider,omitempty"`
	Identifier string        `bson:"identifier"`
	Verified   bool          `bson:"verified"`
	IsPrimary  bool          `bson:"is_primary"`
	LastUsedAt time.Time     `bson:"last_used_at"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}
