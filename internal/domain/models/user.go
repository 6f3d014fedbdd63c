// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a person known to the host, across all sites.
//
// A user may exist without any linked identity (email-only sign-in) and
// without a verified email (registered but not yet confirmed).
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	EmailVerified bool               `bson:"email_verified" json:"email_verified"`
	DisplayName   string             `bson:"display_name,omitempty" json:"display_name,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// Identity links a user to an external provider account.
// Unique per (provider, provider_id).
type Identity struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Provider   string             `bson:"provider" json:"provider"`
	ProviderID string             `bson:"provider_id" json:"provider_id"`
	Email      string             `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
