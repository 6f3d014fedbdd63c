// internal/app/system/auth/auth.go

// Package auth manages the browser cookie and resolves it to an identity.
// The cookie only carries an opaque session ID; the session itself lives
// server side, so revocation takes effect on the next request.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const sessionIDKey = "session_id"

// Identity is the resolved visitor injected into r.Context().
type Identity struct {
	UserID      primitive.ObjectID
	Email       string
	DisplayName string
	AuthType    string
	SiteID      *primitive.ObjectID // nil for admin portal sessions
	SessionID   string
	GlobalAdmin bool
}

// IdentityFetcher resolves a session ID to an identity. A (nil, nil)
// return means the session is unknown or expired.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, sessionID string) (*Identity, error)
}

type ctxKey string

const identityKey ctxKey = "identity"

// SessionManager owns the session cookie.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher IdentityFetcher
	logger  *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager. The `secure`
// flag controls whether cookies are marked Secure and which SameSite mode
// is used: in production (secure=true) cookies are Secure + SameSite=None
// so they survive cross-site navigation from OAuth providers; in local
// dev over http://localhost, Lax cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetIdentityFetcher wires the store-backed resolver. Split from the
// constructor because the stores are built after the config layer.
func (m *SessionManager) SetIdentityFetcher(f IdentityFetcher) {
	m.fetcher = f
}

// Issue writes the session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, r *http.Request, sessionID string) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[sessionIDKey] = sessionID
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionIDKey)
	return sess.Save(r, w)
}

// SessionID extracts the session ID from the cookie, or "".
func (m *SessionManager) SessionID(r *http.Request) string {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		// A cookie signed with an old key just means signed out.
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			return ""
		}
		return ""
	}
	id, _ := sess.Values[sessionIDKey].(string)
	return id
}

// LoadIdentity resolves the cookie to an identity and injects it into the
// request context. Requests without a valid session pass through
// anonymously.
func (m *SessionManager) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}

		id := m.SessionID(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		ident, err := m.fetcher.FetchIdentity(r.Context(), id)
		if err != nil {
			m.logger.Warn("identity lookup failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if ident != nil {
			r = withIdentity(r, ident)
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentIdentity returns the resolved identity and a found flag.
func CurrentIdentity(r *http.Request) (*Identity, bool) {
	ident, ok := r.Context().Value(identityKey).(*Identity)
	return ident, ok
}

// WithTestIdentity injects an identity directly. Test helper.
func WithTestIdentity(r *http.Request, ident *Identity) *http.Request {
	return withIdentity(r, ident)
}

func withIdentity(r *http.Request, ident *Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, ident))
}

// WantsHTML reports whether the client is a browser rather than an API
// caller. Light heuristic over the Accept header.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// CurrentURI preserves path + query for use as a return parameter.
func CurrentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
