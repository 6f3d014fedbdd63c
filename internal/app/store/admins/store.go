// internal/app/store/admins/store.go

// Package admins persists global and per-site administrator grants, plus
// the one-time marker used to promote the first admin to sign in.
package admins

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

// ErrNotFound is returned when an admin grant does not exist.
var ErrNotFound = errors.New("admin grant not found")

const bootstrapMarkerID = "first-admin"

// Store manages admin grants.
type Store struct {
	global    *mongo.Collection
	site      *mongo.Collection
	bootstrap *mongo.Collection
}

// New creates a new admins Store.
func New(db *mongo.Database) *Store {
	return &Store{
		global:    db.Collection("global_admins"),
		site:      db.Collection("site_admins"),
		bootstrap: db.Collection("admin_bootstrap"),
	}
}

// EnsureIndexes creates the uniqueness indexes for both grant collections.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.global.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_global_admins_user"),
		},
	})
	if err != nil {
		return err
	}
	_, err = s.site.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_site_admins_grant"),
		},
	})
	return err
}

// IsGlobalAdmin reports whether the user holds a global admin grant.
func (s *Store) IsGlobalAdmin(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	err := s.global.FindOne(ctx, bson.M{"user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddGlobalAdmin grants global admin rights. Granting twice is a no-op.
// addedBy is nil for grants made by the bootstrap process.
func (s *Store) AddGlobalAdmin(ctx context.Context, userID primitive.ObjectID, addedBy *primitive.ObjectID) error {
	grant := models.GlobalAdmin{
		ID:      primitive.NewObjectID(),
		UserID:  userID,
		AddedBy: addedBy,
		AddedAt: time.Now().UTC(),
	}
	if _, err := s.global.InsertOne(ctx, grant); err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

// RemoveGlobalAdmin revokes a global admin grant.
func (s *Store) RemoveGlobalAdmin(ctx context.Context, userID primitive.ObjectID) error {
	res, err := s.global.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGlobalAdmins returns all global admin grants.
func (s *Store) ListGlobalAdmins(ctx context.Context) ([]models.GlobalAdmin, error) {
	cur, err := s.global.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GlobalAdmin
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountGlobalAdmins returns the number of global admin grants.
func (s *Store) CountGlobalAdmins(ctx context.Context) (int64, error) {
	return s.global.CountDocuments(ctx, bson.M{})
}

// ClaimBootstrap atomically claims the first-admin marker. It returns true
// for exactly one caller across all processes; later callers get false.
func (s *Store) ClaimBootstrap(ctx context.Context) (bool, error) {
	_, err := s.bootstrap.InsertOne(ctx, bson.M{
		"_id":        bootstrapMarkerID,
		"claimed_at": time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AddSiteAdmin grants site admin rights. Granting twice is a no-op.
func (s *Store) AddSiteAdmin(ctx context.Context, siteID, userID primitive.ObjectID, addedBy *primitive.ObjectID) error {
	grant := models.SiteAdmin{
		ID:      primitive.NewObjectID(),
		SiteID:  siteID,
		UserID:  userID,
		AddedBy: addedBy,
		AddedAt: time.Now().UTC(),
	}
	if _, err := s.site.InsertOne(ctx, grant); err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

// RemoveSiteAdmin revokes a site admin grant.
func (s *Store) RemoveSiteAdmin(ctx context.Context, siteID, userID primitive.ObjectID) error {
	res, err := s.site.DeleteOne(ctx, bson.M{"site_id": siteID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSiteAdmins returns the admin grants for a site.
func (s *Store) ListSiteAdmins(ctx context.Context, siteID primitive.ObjectID) ([]models.SiteAdmin, error) {
	cur, err := s.site.Find(ctx, bson.M{"site_id": siteID}, options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SiteAdmin
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns every site admin grant held by the user.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.SiteAdmin, error) {
	cur, err := s.site.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SiteAdmin
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsSiteAdmin reports whether the user administers the given site.
func (s *Store) IsSiteAdmin(ctx context.Context, siteID, userID primitive.ObjectID) (bool, error) {
	err := s.site.FindOne(ctx, bson.M{"site_id": siteID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsAnySiteAdmin reports whether the user administers at least one site.
func (s *Store) IsAnySiteAdmin(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	err := s.site.FindOne(ctx, bson.M{"user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBySite removes all site admin grants for a site.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	_, err := s.site.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}
