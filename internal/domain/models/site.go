// internal/domain/models/site.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Site is a hosted documentation site rooted at a URL path prefix.
//
// Path is canonical: it starts with "/", has no trailing slash (except the
// root site "/"), and never begins with "/_" (reserved for service routes).
type Site struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Path      string             `bson:"path" json:"path"`
	Name      string             `bson:"name" json:"name"`
	CreatedBy primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
