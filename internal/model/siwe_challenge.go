package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SIWEChallenge is a one-time Sign-In with Ethereum challenge. The address
// is stored lower-cased, the nonce is globally unique and a challenge is
// consumable exactly once.
type SIWEChallenge struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Address   string        `bson:"address"`
	Message   string        `bson:"message"`
	Nonce     string        `bson:"nonce"`
	Verified  bool          `bson:"verified"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
