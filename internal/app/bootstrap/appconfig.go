// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS, log
// level, environment). AppConfig is everything specific to the host:
// database, sessions, content storage, mail, and the identity providers.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions
	SessionDomain string        // Cookie domain (blank means current host)
	SessionTTL    time.Duration // Server-side session lifetime

	// Content storage
	DataDir string // Root directory for extracted site content and upload staging

	// Base URL for magic links and OAuth callbacks
	BaseURL string // e.g., "https://docs.example.com" or "http://localhost:3000"

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank logs messages instead of sending)
	MailSMTPPort int    // SMTP server port
	MailSMTPUser string // SMTP username
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address

	// Email sign-in
	EmailTokenExpiry time.Duration // Sign-in code and magic link lifetime

	// Visitor OAuth providers
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Admin portal sign-in (Entra)
	EntraClientID     string
	EntraClientSecret string
	EntraTenant       string // Tenant ID, or "common" for multi-tenant

	// Admin bootstrap
	BootstrapAdminEmail   string // Promoted to global admin on startup when set
	AutoPromoteFirstAdmin bool   // First Entra sign-in becomes global admin when none exist

	// Admin SPA origins allowed to call /_pigsty/api
	AdminCORSOrigins []string
}
