// internal/testutil/http.go
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/ciaranj/piglet/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GlobalAdminIdentity returns an identity with global admin rights.
func GlobalAdminIdentity() *auth.Identity {
	return &auth.Identity{
		UserID:      primitive.NewObjectID(),
		Email:       "admin@test.example",
		DisplayName: "Test Admin",
		AuthType:    "entra",
		SessionID:   primitive.NewObjectID().Hex(),
		GlobalAdmin: true,
	}
}

// SiteAdminIdentity returns a plain identity; pair it with a site admin
// grant created through Fixtures.
func SiteAdminIdentity(userID primitive.ObjectID) *auth.Identity {
	return &auth.Identity{
		UserID:      userID,
		Email:       "siteadmin@test.example",
		DisplayName: "Test Site Admin",
		AuthType:    "entra",
		SessionID:   primitive.NewObjectID().Hex(),
	}
}

// VisitorIdentity returns an identity for a site visitor signed in with
// the given auth type, scoped to the site.
func VisitorIdentity(userID primitive.ObjectID, authType string, siteID primitive.ObjectID) *auth.Identity {
	return &auth.Identity{
		UserID:      userID,
		Email:       "visitor@test.example",
		AuthType:    authType,
		SiteID:      &siteID,
		SessionID:   primitive.NewObjectID().Hex(),
	}
}

// WithIdentity adds an identity to the request context, bypassing the
// session middleware.
func WithIdentity(r *http.Request, ident *auth.Identity) *http.Request {
	return auth.WithTestIdentity(r, ident)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
