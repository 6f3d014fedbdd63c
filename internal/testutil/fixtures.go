// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateSite creates a test site at the given path.
func (f *Fixtures) CreateSite(ctx context.Context, path, name string) models.Site {
	f.t.Helper()

	now := time.Now().UTC()
	site := models.Site{
		ID:        primitive.NewObjectID(),
		Path:      path,
		Name:      name,
		CreatedBy: primitive.NewObjectID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("sites").InsertOne(ctx, site); err != nil {
		f.t.Fatalf("failed to create test site: %v", err)
	}
	return site
}

// CreateUser creates a test user with the given email.
func (f *Fixtures) CreateUser(ctx context.Context, email, displayName string) models.User {
	f.t.Helper()

	user := models.User{
		ID:            primitive.NewObjectID(),
		Email:         email,
		EmailVerified: true,
		DisplayName:   displayName,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAuthConfig enables or disables an auth type on a site.
func (f *Fixtures) CreateAuthConfig(ctx context.Context, siteID primitive.ObjectID, authType string, enabled bool) models.AuthConfig {
	f.t.Helper()

	cfg := models.AuthConfig{
		ID:       primitive.NewObjectID(),
		SiteID:   siteID,
		AuthType: authType,
		Enabled:  enabled,
	}
	if _, err := f.db.Collection("auth_configs").InsertOne(ctx, cfg); err != nil {
		f.t.Fatalf("failed to create test auth config: %v", err)
	}
	return cfg
}

// CreateSession creates a live session for the user. siteID is nil for an
// admin portal session.
func (f *Fixtures) CreateSession(ctx context.Context, userID primitive.ObjectID, authType string, siteID *primitive.ObjectID) models.Session {
	f.t.Helper()

	now := time.Now().UTC()
	sess := models.Session{
		ID:        primitive.NewObjectID().Hex(),
		UserID:    userID,
		AuthType:  authType,
		SiteID:    siteID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if _, err := f.db.Collection("sessions").InsertOne(ctx, sess); err != nil {
		f.t.Fatalf("failed to create test session: %v", err)
	}
	return sess
}

// CreateVersion creates a content version record for a site.
func (f *Fixtures) CreateVersion(ctx context.Context, siteID primitive.ObjectID, description string, active bool) models.ContentVersion {
	f.t.Helper()

	v := models.ContentVersion{
		ID:          primitive.NewObjectID(),
		SiteID:      siteID,
		Description: description,
		SizeBytes:   1024,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  primitive.NewObjectID(),
		IsActive:    active,
	}
	if _, err := f.db.Collection("content_versions").InsertOne(ctx, v); err != nil {
		f.t.Fatalf("failed to create test version: %v", err)
	}
	return v
}

// CreateGlobalAdmin grants the user global admin rights.
func (f *Fixtures) CreateGlobalAdmin(ctx context.Context, userID primitive.ObjectID) models.GlobalAdmin {
	f.t.Helper()

	grant := models.GlobalAdmin{
		ID:      primitive.NewObjectID(),
		UserID:  userID,
		AddedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("global_admins").InsertOne(ctx, grant); err != nil {
		f.t.Fatalf("failed to create test global admin: %v", err)
	}
	return grant
}

// CreateSiteAdmin grants the user admin rights on a site.
func (f *Fixtures) CreateSiteAdmin(ctx context.Context, siteID, userID primitive.ObjectID) models.SiteAdmin {
	f.t.Helper()

	grant := models.SiteAdmin{
		ID:      primitive.NewObjectID(),
		SiteID:  siteID,
		UserID:  userID,
		AddedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("site_admins").InsertOne(ctx, grant); err != nil {
		f.t.Fatalf("failed to create test site admin: %v", err)
	}
	return grant
}
