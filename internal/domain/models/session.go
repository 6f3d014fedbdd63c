// internal/domain/models/session.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is a server-side bearer session. The browser cookie carries only
// the opaque ID; everything else lives here.
//
// SiteID scopes the session to one site. A nil SiteID is an admin portal
// session (signed in via Entra, not tied to any site).
type Session struct {
	ID        string              `bson:"_id" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	AuthType  string              `bson:"auth_type" json:"auth_type"`
	SiteID    *primitive.ObjectID `bson:"site_id,omitempty" json:"site_id,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time           `bson:"expires_at" json:"expires_at"`
}
