// internal/domain/models/admin.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GlobalAdmin grants a user full access to every site and the admin API.
type GlobalAdmin struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID  `bson:"user_id" json:"user_id"`
	AddedBy *primitive.ObjectID `bson:"added_by,omitempty" json:"added_by,omitempty"`
	AddedAt time.Time           `bson:"added_at" json:"added_at"`
}

// SiteAdmin grants a user admin access to one site.
type SiteAdmin struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SiteID  primitive.ObjectID  `bson:"site_id" json:"site_id"`
	UserID  primitive.ObjectID  `bson:"user_id" json:"user_id"`
	AddedBy *primitive.ObjectID `bson:"added_by,omitempty" json:"added_by,omitempty"`
	AddedAt time.Time           `bson:"added_at" json:"added_at"`
}
