// internal/app/store/oauthstate/store.go

// Package oauthstate persists OAuth state tokens for CSRF protection.
// Each state is single use and carries where the visitor came from, so
// the callback can scope the session and redirect back correctly.
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultExpiry is how long an OAuth state is valid.
const DefaultExpiry = 10 * time.Minute

// ErrInvalidState is returned when a state is unknown, expired, or reused.
var ErrInvalidState = errors.New("invalid or expired oauth state")

// State is a pending OAuth flow.
type State struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	State     string              `bson:"state"`
	Provider  string              `bson:"provider"`
	SiteID    *primitive.ObjectID `bson:"site_id,omitempty"` // nil for admin portal sign-in
	SitePath  string              `bson:"site_path,omitempty"`
	ReturnTo  string              `bson:"return_to,omitempty"`
	ExpiresAt time.Time           `bson:"expires_at"`
	CreatedAt time.Time           `bson:"created_at"`
}

// Store manages OAuth state records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a new oauthstate Store. A non-positive expiry falls back to
// DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("oauth_states"), expiry: expiry}
}

// EnsureIndexes creates the unique state index and a TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_states_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_oauth_states_expires"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save records a pending OAuth flow keyed by its state token.
func (s *Store) Save(ctx context.Context, state, provider string, siteID *primitive.ObjectID, sitePath, returnTo string) error {
	now := time.Now().UTC()
	_, err := s.c.InsertOne(ctx, State{
		ID:        primitive.NewObjectID(),
		State:     state,
		Provider:  provider,
		SiteID:    siteID,
		SitePath:  sitePath,
		ReturnTo:  returnTo,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	})
	return err
}

// Validate consumes a state token. FindOneAndDelete makes the check and
// the invalidation a single atomic step, so a state can never be used
// twice even under concurrent callbacks.
func (s *Store) Validate(ctx context.Context, state, provider string) (*State, error) {
	filter := bson.M{
		"state":      state,
		"provider":   provider,
		"expires_at": bson.M{"$gt": time.Now()},
	}
	var st State
	err := s.c.FindOneAndDelete(ctx, filter).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteExpired removes expired states and returns the count.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
