// internal/app/store/sites/store.go
package sites

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

var (
	// ErrNotFound is returned when a site does not exist.
	ErrNotFound = errors.New("site not found")
	// ErrPathTaken is returned when another site already owns the path.
	ErrPathTaken = errors.New("site path already in use")
)

// Store manages site records.
type Store struct {
	c *mongo.Collection
}

// New creates a new sites Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sites")}
}

// EnsureIndexes creates the unique path index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "path", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_sites_path"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new site. The path must already be canonical.
func (s *Store) Create(ctx context.Context, path, name string, createdBy primitive.ObjectID) (models.Site, error) {
	now := time.Now().UTC()
	site := models.Site{
		ID:        primitive.NewObjectID(),
		Path:      path,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, site); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Site{}, ErrPathTaken
		}
		return models.Site{}, err
	}
	return site, nil
}

// GetByID retrieves a site by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Site, error) {
	var site models.Site
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&site)
	if err == mongo.ErrNoDocuments {
		return models.Site{}, ErrNotFound
	}
	return site, err
}

// GetByPath returns the site with the exact canonical path, or nil when no
// site has it. The pointer-or-nil shape is what the path resolver consumes.
func (s *Store) GetByPath(ctx context.Context, path string) (*models.Site, error) {
	var site models.Site
	err := s.c.FindOne(ctx, bson.M{"path": path}).Decode(&site)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// List returns all sites sorted by path.
func (s *Store) List(ctx context.Context) ([]models.Site, error) {
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sites []models.Site
	if err := cur.All(ctx, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// Update changes a site's name and path.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, path, name string) (models.Site, error) {
	update := bson.M{"$set": bson.M{
		"path":       path,
		"name":       name,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var site models.Site
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&site)
	if err == mongo.ErrNoDocuments {
		return models.Site{}, ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return models.Site{}, ErrPathTaken
	}
	return site, err
}

// Delete removes the site record. Related records and on-disk content are
// the caller's responsibility (cascade lives in the admin handler).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
