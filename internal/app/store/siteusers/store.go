// internal/app/store/siteusers/store.go

// Package siteusers records which users have registered for a site. Only
// sites using the email register flow consult this collection.
package siteusers

import (
	"context"
	"errors"
	"time"

	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlreadyRegistered is returned when the user is already registered.
var ErrAlreadyRegistered = errors.New("user already registered for site")

// Store manages site membership records.
type Store struct {
	c *mongo.Collection
}

// New creates a new siteusers Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("site_users")}
}

// EnsureIndexes creates the unique membership index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_site_users_membership"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Register records a user's membership of a site.
func (s *Store) Register(ctx context.Context, siteID, userID primitive.ObjectID) error {
	su := models.SiteUser{
		ID:        primitive.NewObjectID(),
		SiteID:    siteID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, su); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyRegistered
		}
		return err
	}
	return nil
}

// IsRegistered reports whether a user is registered for a site.
func (s *Store) IsRegistered(ctx context.Context, siteID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"site_id": siteID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListBySite returns the membership records for a site, newest first.
func (s *Store) ListBySite(ctx context.Context, siteID primitive.ObjectID) ([]models.SiteUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"site_id": siteID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SiteUser
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Unregister removes a user's membership of a site.
func (s *Store) Unregister(ctx context.Context, siteID, userID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"site_id": siteID, "user_id": userID})
	return err
}

// DeleteBySite removes all memberships for a site.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}
