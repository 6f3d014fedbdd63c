// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// runner holds the background jobs between Startup and Shutdown.
var runner *tasks.Runner

// Startup runs one-time initialization after DB connections and schema
// setup are complete, but before the HTTP handler is built: the
// config-driven admin bootstrap and the background sweepers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	if appCfg.BootstrapAdminEmail != "" {
		if err := ensureBootstrapAdmin(ctx, deps, appCfg.BootstrapAdminEmail, logger); err != nil {
			return err
		}
	}

	runner = tasks.NewRunner(logger,
		tasks.SessionCleanupJob(sessions.New(db, appCfg.SessionTTL), logger),
		tasks.EmailTokenCleanupJob(emailtokens.New(db, appCfg.EmailTokenExpiry), logger),
		tasks.OAuthStateCleanupJob(oauthstate.New(db, 0), logger),
	)
	runner.Start()

	return nil
}

// ensureBootstrapAdmin creates or finds the configured user and grants it
// global admin rights. AddGlobalAdmin is idempotent, so re-running on
// every startup is harmless.
func ensureBootstrapAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	db := deps.MongoDatabase

	user, err := users.New(db).EnsureByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := admins.New(db).AddGlobalAdmin(ctx, user.ID, nil); err != nil {
		return err
	}

	logger.Info("bootstrap admin ensured", zap.String("email", email))
	return nil
}
