// internal/app/store/versions/store.go

// Package versions persists content version records. At most one version
// per site is active at a time.
package versions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ciaranj/piglet/internal/app/system/txn"
	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a version does not exist.
	ErrNotFound = errors.New("content version not found")
	// ErrNoActive is returned when a site has no active version.
	ErrNoActive = errors.New("no active content version")
)

// Store manages content version records.
type Store struct {
	c      *mongo.Collection
	logger *zap.Logger
}

// New creates a new versions Store.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("content_versions"), logger: logger}
}

// EnsureIndexes creates the site lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
			Options: options.Index().SetName("idx_content_versions_site_uploaded"),
		},
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_content_versions_site_active"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new, inactive version record.
func (s *Store) Create(ctx context.Context, siteID primitive.ObjectID, description string, sizeBytes int64, uploadedBy primitive.ObjectID) (models.ContentVersion, error) {
	v := models.ContentVersion{
		ID:          primitive.NewObjectID(),
		SiteID:      siteID,
		Description: description,
		SizeBytes:   sizeBytes,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  uploadedBy,
	}
	if _, err := s.c.InsertOne(ctx, v); err != nil {
		return models.ContentVersion{}, err
	}
	return v, nil
}

// SetSize records the extracted size of a version's content.
func (s *Store) SetSize(ctx context.Context, siteID, id primitive.ObjectID, sizeBytes int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "site_id": siteID},
		bson.M{"$set": bson.M{"size_bytes": sizeBytes}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a version by ID, scoped to a site.
func (s *Store) GetByID(ctx context.Context, siteID, id primitive.ObjectID) (models.ContentVersion, error) {
	var v models.ContentVersion
	err := s.c.FindOne(ctx, bson.M{"_id": id, "site_id": siteID}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return models.ContentVersion{}, ErrNotFound
	}
	return v, err
}

// GetActive returns the site's active version, or ErrNoActive.
func (s *Store) GetActive(ctx context.Context, siteID primitive.ObjectID) (models.ContentVersion, error) {
	var v models.ContentVersion
	err := s.c.FindOne(ctx, bson.M{"site_id": siteID, "is_active": true}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return models.ContentVersion{}, ErrNoActive
	}
	return v, err
}

// ListBySite returns a site's versions, newest upload first.
func (s *Store) ListBySite(ctx context.Context, siteID primitive.ObjectID) ([]models.ContentVersion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"site_id": siteID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ContentVersion
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Activate makes the given version the site's only active one. The
// clear-then-set pair runs in a transaction so readers never observe two
// active versions; on standalone Mongo it falls back to sequential writes.
// Returns the previously active version's ID, or nil when none was active.
func (s *Store) Activate(ctx context.Context, siteID, id primitive.ObjectID) (*primitive.ObjectID, error) {
	if _, err := s.GetByID(ctx, siteID, id); err != nil {
		return nil, err
	}

	var previous *primitive.ObjectID
	err := txn.WithTransaction(ctx, s.c.Database().Client(), s.logger, func(ctx context.Context) error {
		var prev models.ContentVersion
		err := s.c.FindOne(ctx, bson.M{"site_id": siteID, "is_active": true}).Decode(&prev)
		if err == nil {
			previous = &prev.ID
		} else if err != mongo.ErrNoDocuments {
			return err
		}

		if _, err := s.c.UpdateMany(ctx,
			bson.M{"site_id": siteID, "is_active": true},
			bson.M{"$set": bson.M{"is_active": false}},
		); err != nil {
			return err
		}

		res, err := s.c.UpdateOne(ctx,
			bson.M{"_id": id, "site_id": siteID},
			bson.M{"$set": bson.M{"is_active": true}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activate version: %w", err)
	}
	return previous, nil
}

// Delete removes a version record.
func (s *Store) Delete(ctx context.Context, siteID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "site_id": siteID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBySite removes all version records for a site.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}
