// internal/domain/models/authconfig.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Auth types a site can enable. AuthEntra is only used for admin portal
// sign-in and is never a valid site auth type.
const (
	AuthAnonymous = "anonymous"
	AuthGoogle    = "google"
	AuthMicrosoft = "microsoft"
	AuthEmail     = "email"
	AuthEntra     = "entra"
)

// SiteAuthTypes lists the auth types a site may configure, in the order
// they are presented to visitors on the method chooser.
var SiteAuthTypes = []string{AuthAnonymous, AuthGoogle, AuthMicrosoft, AuthEmail}

// IsSiteAuthType reports whether t is a configurable site auth type.
func IsSiteAuthType(t string) bool {
	for _, s := range SiteAuthTypes {
		if s == t {
			return true
		}
	}
	return false
}

// AuthConfig enables or disables one auth type for one site.
// At most one document exists per (site_id, auth_type).
type AuthConfig struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SiteID   primitive.ObjectID `bson:"site_id" json:"site_id"`
	AuthType string             `bson:"auth_type" json:"auth_type"`
	Enabled  bool               `bson:"enabled" json:"enabled"`
	Config   map[string]any     `bson:"config,omitempty" json:"config,omitempty"`
}

// Email auth flow types.
const (
	FlowMagicLink = "magic_link"
	FlowRegister  = "register"
)

// EmailSettings refines a site's email auth: which flow is used and,
// optionally, which email domains are allowed to sign in.
type EmailSettings struct {
	SiteID         primitive.ObjectID `bson:"site_id" json:"site_id"`
	FlowType       string             `bson:"flow_type" json:"flow_type"`
	AllowedDomains []string           `bson:"allowed_domains,omitempty" json:"allowed_domains,omitempty"`
}
