// internal/app/system/indexes/indexes.go

// Package indexes creates every collection index at startup.
package indexes

import (
	"context"
	"fmt"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the indexes for every store. Index creation is
// idempotent, so this runs on every startup.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	steps := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"sites", sites.New(db).EnsureIndexes},
		{"site auth", siteauth.New(db).EnsureIndexes},
		{"users", users.New(db).EnsureIndexes},
		{"sessions", sessions.New(db, 0).EnsureIndexes},
		{"site users", siteusers.New(db).EnsureIndexes},
		{"admins", admins.New(db).EnsureIndexes},
		{"email tokens", emailtokens.New(db, 0).EnsureIndexes},
		{"oauth states", oauthstate.New(db, 0).EnsureIndexes},
		{"content versions", versions.New(db, logger).EnsureIndexes},
	}

	for _, step := range steps {
		if err := step.ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", step.name, err)
		}
	}

	logger.Info("database indexes ensured")
	return nil
}
