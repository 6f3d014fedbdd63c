// internal/app/system/policy/sitepolicy/policy.go

// Package sitepolicy decides whether a request may read a site's content.
//
// Decide is a pure function over already-loaded state, so every branch of
// the decision order can be tested without a database. Handlers gather the
// inputs (site, auth configs, email settings, the validated session and its
// user) and act on the returned decision.
package sitepolicy

import (
	"strings"

	"github.com/ciaranj/piglet/internal/domain/models"
)

// Kind discriminates the possible outcomes of a policy decision.
type Kind int

const (
	// Allow grants access.
	Allow Kind = iota + 1
	// Deny refuses access outright (403).
	Deny
	// RedirectLogin sends the visitor to sign in; AuthTypes lists the
	// enabled methods to choose from.
	RedirectLogin
	// RedirectRegister sends a signed-in visitor to the site's
	// registration flow.
	RedirectRegister
)

// Decision is the outcome of Decide.
type Decision struct {
	Kind   Kind
	Reason string // set for Deny

	// AuthTypes is set for RedirectLogin: the enabled non-anonymous auth
	// types in presentation order. A single entry means the caller can
	// redirect straight to that provider instead of showing a chooser.
	AuthTypes []string
}

// Input carries everything Decide needs.
//
// Session and User are nil when the visitor has no valid session. A session
// must already have passed read-time expiry filtering; Decide does not
// re-check expiry. Registered is only consulted for email auth with the
// register flow.
type Input struct {
	Site        models.Site
	Configs     []models.AuthConfig
	Email       *models.EmailSettings
	Session     *models.Session
	User        *models.User
	GlobalAdmin bool
	Registered  bool
}

// Decide applies the access policy for one request, in order:
//
//  1. anonymous enabled: allow everyone
//  2. nothing enabled: deny everyone
//  3. no session: redirect to login with the enabled methods
//  4. global admin: allow regardless of how they signed in
//  5. session scoped to a different site: treated as not signed in
//  6. session auth type not enabled here: deny
//  7. email auth: allowed-domain check, then register-flow membership
//  8. otherwise: allow
func Decide(in Input) Decision {
	if enabled(in.Configs, models.AuthAnonymous) {
		return Decision{Kind: Allow}
	}

	types := enabledTypes(in.Configs)
	if len(types) == 0 {
		return Decision{Kind: Deny, Reason: "no authentication methods enabled"}
	}

	if in.Session == nil || in.User == nil {
		return Decision{Kind: RedirectLogin, AuthTypes: types}
	}

	if in.GlobalAdmin {
		return Decision{Kind: Allow}
	}

	if in.Session.SiteID != nil && *in.Session.SiteID != in.Site.ID {
		return Decision{Kind: RedirectLogin, AuthTypes: types}
	}

	if !contains(types, in.Session.AuthType) {
		return Decision{Kind: Deny, Reason: "authentication method not permitted"}
	}

	if in.Session.AuthType == models.AuthEmail {
		if d, ok := decideEmail(in); !ok {
			return d
		}
	}

	return Decision{Kind: Allow}
}

// decideEmail applies the email-specific checks. ok is true when access
// should fall through to Allow.
func decideEmail(in Input) (Decision, bool) {
	if in.Email == nil {
		// No settings row: default magic-link flow, no domain restriction.
		return Decision{}, true
	}

	if len(in.Email.AllowedDomains) > 0 && !domainAllowed(in.User.Email, in.Email.AllowedDomains) {
		return Decision{Kind: Deny, Reason: "email domain not allowed"}, false
	}

	if in.Email.FlowType == models.FlowRegister && !in.Registered {
		return Decision{Kind: RedirectRegister}, false
	}

	return Decision{}, true
}

func domainAllowed(email string, domains []string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range domains {
		if strings.ToLower(strings.TrimSpace(d)) == domain {
			return true
		}
	}
	return false
}

// enabledTypes returns the enabled non-anonymous auth types in the order
// of models.SiteAuthTypes.
func enabledTypes(configs []models.AuthConfig) []string {
	var out []string
	for _, t := range models.SiteAuthTypes {
		if t == models.AuthAnonymous {
			continue
		}
		if enabled(configs, t) {
			out = append(out, t)
		}
	}
	return out
}

func enabled(configs []models.AuthConfig, authType string) bool {
	for _, c := range configs {
		if c.AuthType == authType && c.Enabled {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
