package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Verification code types.
const (
	CodeTypeEmail = "email"
	CodeTypeSMS   = "sms"
	CodeTypeMFA   = "mfa"
)

// VerificationCode is a one-time numeric proof delivered out-of-band. At
// most one unverified code is considered current per (identifier, type):
// lookups always return the most recently created unverified row.
type VerificationCode struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Identifier  string        `bson:"identifier"`
	Type        string        `bson:"type"`
	Code        string        `bson:"code"`
	Attempts    int           `bson:"attempts"`
	MaxAttempts int           `bson:"max_attempts"`
	Verified    bool          `bson:"verified"`
	ExpiresAt   time.Time     `bson:"expires_at"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}
