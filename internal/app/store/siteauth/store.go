// internal/app/store/siteauth/store.go

// Package siteauth persists per-site authentication settings: one
// auth_configs document per (site, auth type) plus at most one
// email_settings document per site.
package siteauth

import (
	"context"
	"errors"

	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a settings document does not exist.
var ErrNotFound = errors.New("auth settings not found")

// Store manages auth_configs and email_settings.
type Store struct {
	configs *mongo.Collection
	email   *mongo.Collection
}

// New creates a new siteauth Store.
func New(db *mongo.Database) *Store {
	return &Store{
		configs: db.Collection("auth_configs"),
		email:   db.Collection("email_settings"),
	}
}

// EnsureIndexes creates the uniqueness indexes for both collections.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.configs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}, {Key: "auth_type", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_auth_configs_site_type"),
		},
	})
	if err != nil {
		return err
	}
	_, err = s.email.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "site_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email_settings_site"),
		},
	})
	return err
}

// ListConfigs returns all auth configs for a site.
func (s *Store) ListConfigs(ctx context.Context, siteID primitive.ObjectID) ([]models.AuthConfig, error) {
	cur, err := s.configs.Find(ctx, bson.M{"site_id": siteID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AuthConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertConfig creates or replaces the config for one auth type on a site.
func (s *Store) UpsertConfig(ctx context.Context, siteID primitive.ObjectID, authType string, enabled bool, config map[string]any) error {
	filter := bson.M{"site_id": siteID, "auth_type": authType}
	update := bson.M{"$set": bson.M{
		"enabled": enabled,
		"config":  config,
	}}
	_, err := s.configs.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetEmailSettings returns the email settings for a site, or ErrNotFound.
func (s *Store) GetEmailSettings(ctx context.Context, siteID primitive.ObjectID) (models.EmailSettings, error) {
	var settings models.EmailSettings
	err := s.email.FindOne(ctx, bson.M{"site_id": siteID}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return models.EmailSettings{}, ErrNotFound
	}
	return settings, err
}

// SetEmailSettings creates or replaces a site's email settings.
func (s *Store) SetEmailSettings(ctx context.Context, siteID primitive.ObjectID, flowType string, allowedDomains []string) error {
	filter := bson.M{"site_id": siteID}
	update := bson.M{"$set": bson.M{
		"flow_type":       flowType,
		"allowed_domains": allowedDomains,
	}}
	_, err := s.email.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// DeleteBySite removes all auth settings for a site.
func (s *Store) DeleteBySite(ctx context.Context, siteID primitive.ObjectID) error {
	if _, err := s.configs.DeleteMany(ctx, bson.M{"site_id": siteID}); err != nil {
		return err
	}
	_, err := s.email.DeleteMany(ctx, bson.M{"site_id": siteID})
	return err
}
