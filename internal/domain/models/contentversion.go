// internal/domain/models/contentversion.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentVersion is one uploaded snapshot of a site's static content.
// At most one version per site has IsActive set; activation is a
// clear-then-set swap so the invariant holds at every point in time.
type ContentVersion struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SiteID      primitive.ObjectID `bson:"site_id" json:"site_id"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	SizeBytes   int64              `bson:"size_bytes" json:"size_bytes"`
	UploadedAt  time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	UploadedBy  primitive.ObjectID `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
}
