// internal/domain/models/siteuser.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SiteUser records that a user has registered with a site. Only consulted
// when the site's email auth uses the register flow.
type SiteUser struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SiteID    primitive.ObjectID `bson:"site_id" json:"site_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
