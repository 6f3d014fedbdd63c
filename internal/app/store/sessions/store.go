// internal/app/store/sessions/store.go

// Package sessions persists bearer sessions. The session ID is an opaque
// random token carried in the browser cookie; everything else about the
// visitor lives server side in this collection.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store manages session records.
type Store struct {
	c   *mongo.Collection
	ttl time.Duration
}

// New creates a new sessions Store. A non-positive ttl falls back to
// DefaultTTL.
func New(db *mongo.Database, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{c: db.Collection("sessions"), ttl: ttl}
}

// EnsureIndexes creates the TTL index so Mongo reaps expired sessions.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_sessions_expires"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_sessions_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create issues a new session. siteID is nil for admin portal sessions and
// set for sessions scoped to a single site.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, authType string, siteID *primitive.ObjectID) (models.Session, error) {
	id, err := generateID()
	if err != nil {
		return models.Session{}, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now().UTC()
	sess := models.Session{
		ID:        id,
		UserID:    userID,
		AuthType:  authType,
		SiteID:    siteID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// Get returns a live session. Expired sessions are filtered at read time;
// the TTL index only reaps them eventually.
func (s *Store) Get(ctx context.Context, id string) (models.Session, error) {
	filter := bson.M{
		"_id":        id,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	var sess models.Session
	err := s.c.FindOne(ctx, filter).Decode(&sess)
	if err == mongo.ErrNoDocuments {
		return models.Session{}, ErrNotFound
	}
	return sess, err
}

// Delete removes a single session.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByUser removes all of a user's sessions.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// DeleteBySite removes all sessions scoped to a site.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}

// DeleteExpired removes expired sessions and returns how many were deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
