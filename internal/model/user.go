package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is the identity anchor of the authentication system. A user is
// created on the first successful verification through any method and is
// never hard-deleted by this service.
type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Email         string        `bson:"email,omitempty"`
	Phone         string        `bson:"phone,omitempty"`
	EmailVerified bool          `bson:"email_verified"`
	PhoneVerified bool          `bson:"phone_verified"`
	DisplayName   string        `bson:"display_name,omitempty"`
	AvatarURL     string        `bson:"avatar_url,omitempty"`
	LastLoginAt   time.Time     `bson:"last_login_at"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}
