// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for piglet.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: PIGLET_MONGO_URI, PIGLET_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "piglet", Desc: "MongoDB database name"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "piglet-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_ttl", Default: "168h", Desc: "Server-side session lifetime (e.g., 168h for a week)"},

	// Content storage
	{Name: "data_dir", Default: "./data", Desc: "Root directory for site content and upload staging"},

	// Base URL for magic links and OAuth callbacks
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links and OAuth callbacks"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs messages instead of sending)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@localhost", Desc: "From email address"},
	{Name: "email_token_expiry", Default: "15m", Desc: "Email sign-in code/link expiry (e.g., 15m, 1h)"},

	// Visitor OAuth providers
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
	{Name: "microsoft_client_id", Default: "", Desc: "Microsoft OAuth2 client ID"},
	{Name: "microsoft_client_secret", Default: "", Desc: "Microsoft OAuth2 client secret"},

	// Admin portal sign-in (Entra)
	{Name: "entra_client_id", Default: "", Desc: "Entra OAuth2 client ID for admin portal sign-in"},
	{Name: "entra_client_secret", Default: "", Desc: "Entra OAuth2 client secret"},
	{Name: "entra_tenant", Default: "common", Desc: "Entra tenant ID ('common' for multi-tenant)"},

	// Admin bootstrap
	{Name: "bootstrap_admin_email", Default: "", Desc: "Email promoted to global admin on startup"},
	{Name: "auto_promote_first_admin", Default: true, Desc: "Promote the first admin portal sign-in to global admin when none exist"},

	// Admin SPA CORS
	{Name: "admin_cors_origins", Default: "", Desc: "Comma-separated origins allowed to call the admin API"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PIGLET", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionTTL:    appValues.Duration("session_ttl", 7*24*time.Hour),

		DataDir: appValues.String("data_dir"),
		BaseURL: strings.TrimSuffix(appValues.String("base_url"), "/"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),

		EmailTokenExpiry: appValues.Duration("email_token_expiry", 15*time.Minute),

		GoogleClientID:        appValues.String("google_client_id"),
		GoogleClientSecret:    appValues.String("google_client_secret"),
		MicrosoftClientID:     appValues.String("microsoft_client_id"),
		MicrosoftClientSecret: appValues.String("microsoft_client_secret"),

		EntraClientID:     appValues.String("entra_client_id"),
		EntraClientSecret: appValues.String("entra_client_secret"),
		EntraTenant:       appValues.String("entra_tenant"),

		BootstrapAdminEmail:   appValues.String("bootstrap_admin_email"),
		AutoPromoteFirstAdmin: appValues.Bool("auto_promote_first_admin"),

		AdminCORSOrigins: splitOrigins(appValues.String("admin_cors_origins")),
	}

	return coreCfg, appCfg, nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if coreCfg.Env == "prod" {
		if len(appCfg.SessionKey) < 32 {
			return fmt.Errorf("session_key must be at least 32 characters in production")
		}
		if strings.HasPrefix(appCfg.SessionKey, "dev-only-") {
			return fmt.Errorf("session_key still has the development default in production")
		}
	}
	return nil
}
