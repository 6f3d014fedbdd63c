// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	authemailfeature "github.com/ciaranj/piglet/internal/app/features/authemail"
	authoauthfeature "github.com/ciaranj/piglet/internal/app/features/authoauth"
	authsessionfeature "github.com/ciaranj/piglet/internal/app/features/authsession"
	healthfeature "github.com/ciaranj/piglet/internal/app/features/health"
	servefeature "github.com/ciaranj/piglet/internal/app/features/serve"
	siteadminfeature "github.com/ciaranj/piglet/internal/app/features/siteadmin"
	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/authz"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"github.com/ciaranj/piglet/internal/app/system/mailer"
	"github.com/ciaranj/piglet/internal/app/system/resolver"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// Route layout, most specific first:
//   - /_health            liveness
//   - /_auth              session, chooser, email, and OAuth endpoints
//   - /_pigsty/api        admin API (CORS + authorization middlewares)
//   - /*                  resolved site content, mounted last
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	siteStore := sites.New(db)
	siteAuthStore := siteauth.New(db)
	siteUserStore := siteusers.New(db)
	userStore := users.New(db)
	adminStore := admins.New(db)
	sessionStore := sessions.New(db, appCfg.SessionTTL)
	versionStore := versions.New(db, logger)
	tokenStore := emailtokens.New(db, appCfg.EmailTokenExpiry)
	stateStore := oauthstate.New(db, 0)

	contentMgr := content.NewManager(versionStore, deps.FS, logger)

	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetIdentityFetcher(&auth.StoreFetcher{
		Sessions: sessionStore,
		Users:    userStore,
		Admins:   adminStore,
	})

	sender := mailer.New(appCfg.MailSMTPHost, appCfg.MailSMTPPort,
		appCfg.MailSMTPUser, appCfg.MailSMTPPass, appCfg.MailFrom, logger)

	guard := &authz.Guard{Admins: adminStore, Logger: logger}

	r := chi.NewRouter()

	// Loads the identity from the session cookie on every request.
	r.Use(sessionMgr.LoadIdentity)

	r.Mount("/_health", healthfeature.Routes(
		healthfeature.NewHandler(deps.MongoClient, logger)))

	r.Route("/_auth", func(r chi.Router) {
		sessionHandler := authsessionfeature.NewHandler(sessionMgr, sessionStore, siteStore, siteAuthStore, adminStore, logger)
		r.Mount("/", authsessionfeature.Routes(sessionHandler))

		emailHandler := authemailfeature.NewHandler(userStore, siteStore, siteAuthStore, siteUserStore,
			tokenStore, sessionStore, sessionMgr, sender, appCfg.BaseURL, logger)
		r.Mount("/email", authemailfeature.Routes(emailHandler))

		providers := []*authoauthfeature.Provider{
			authoauthfeature.Google(appCfg.GoogleClientID, appCfg.GoogleClientSecret),
			authoauthfeature.Microsoft(appCfg.MicrosoftClientID, appCfg.MicrosoftClientSecret),
			authoauthfeature.Entra(appCfg.EntraClientID, appCfg.EntraClientSecret, appCfg.EntraTenant),
		}
		for _, p := range providers {
			h := authoauthfeature.NewHandler(p, sessionMgr, sessionStore, userStore, siteStore,
				siteAuthStore, adminStore, stateStore, appCfg.BaseURL, appCfg.AutoPromoteFirstAdmin, logger)
			r.Mount("/"+p.Name, authoauthfeature.Routes(h))
		}
	})

	adminHandler := &siteadminfeature.Handler{
		Sites:     siteStore,
		SiteAuth:  siteAuthStore,
		SiteUsers: siteUserStore,
		Users:     userStore,
		Admins:    adminStore,
		Sessions:  sessionStore,
		Tokens:    tokenStore,
		Versions:  versionStore,
		Content:   contentMgr,
		FS:        deps.FS,
		Log:       logger,
	}
	r.Mount("/_pigsty/api", siteadminfeature.Routes(adminHandler, guard, appCfg.AdminCORSOrigins))

	serveHandler := servefeature.NewHandler(
		resolver.New(siteStore), siteAuthStore, siteUserStore, contentMgr, logger)
	r.Mount("/", servefeature.Routes(serveHandler))

	return r, nil
}
