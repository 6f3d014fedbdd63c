// internal/app/features/authoauth/handler.go

// Package authoauth drives the OAuth sign-in flows: Google and Microsoft
// for site visitors, Entra for the admin portal.
package authoauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Handler handles the login and callback legs for one provider.
type Handler struct {
	Provider   *Provider
	SessionMgr *auth.SessionManager
	Sessions   *sessions.Store
	Users      *users.Store
	Sites      *sites.Store
	SiteAuth   *siteauth.Store
	Admins     *admins.Store
	StateStore *oauthstate.Store
	Log        *zap.Logger

	// RedirectURL is this provider's callback, derived from the base URL.
	RedirectURL string

	// AutoPromoteFirstAdmin grants global admin to the first admin portal
	// sign-in when no admins exist yet. Entra only.
	AutoPromoteFirstAdmin bool
}

// NewHandler creates an OAuth handler for one provider.
func NewHandler(p *Provider, mgr *auth.SessionManager, sessStore *sessions.Store, userStore *users.Store, siteStore *sites.Store, siteAuthStore *siteauth.Store, adminStore *admins.Store, stateStore *oauthstate.Store, baseURL string, autoPromote bool, logger *zap.Logger) *Handler {
	return &Handler{
		Provider:              p,
		SessionMgr:            mgr,
		Sessions:              sessStore,
		Users:                 userStore,
		Sites:                 siteStore,
		SiteAuth:              siteAuthStore,
		Admins:                adminStore,
		StateStore:            stateStore,
		RedirectURL:           baseURL + "/_auth/" + p.Name + "/callback",
		AutoPromoteFirstAdmin: autoPromote,
		Log:                   logger,
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.Provider.ClientID,
		ClientSecret: h.Provider.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes:       h.Provider.Scopes,
		Endpoint:     h.Provider.Endpoint,
	}
}

// ServeLogin handles GET /_auth/{provider}/login: saves the flow state
// and redirects to the provider's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Provider.IsConfigured() {
		h.Log.Warn("oauth provider not configured", zap.String("provider", h.Provider.Name))
		http.Error(w, "sign-in method not available", http.StatusNotFound)
		return
	}

	var siteID *primitive.ObjectID
	sitePath := ""
	if !h.Provider.AdminPortal {
		sitePath = query.Get(r, "site")
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		site, err := h.Sites.GetByPath(ctx, sitePath)
		if err != nil {
			h.Log.Error("oauth site lookup failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if site == nil {
			http.NotFound(w, r)
			return
		}

		// The provider must be enabled on the site before any state is
		// minted; a disabled provider must not hand out sessions.
		configs, err := h.SiteAuth.ListConfigs(ctx, site.ID)
		if err != nil {
			h.Log.Error("oauth auth config lookup failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		enabled := false
		for _, c := range configs {
			if c.AuthType == h.Provider.Name && c.Enabled {
				enabled = true
				break
			}
		}
		if !enabled {
			http.Error(w, "sign-in method not enabled for this site", http.StatusForbidden)
			return
		}

		siteID = &site.ID
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate oauth state", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.StateStore.Save(ctx, state, h.Provider.Name, siteID, sitePath, query.Get(r, "return")); err != nil {
		h.Log.Error("failed to save oauth state", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /_auth/{provider}/callback.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("oauth provider returned error",
			zap.String("provider", h.Provider.Name),
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.failLogin(w, r, "denied")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.failLogin(w, r, "invalid_state")
		return
	}

	shortCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	st, err := h.StateStore.Validate(shortCtx, state, h.Provider.Name)
	if err == oauthstate.ErrInvalidState {
		h.Log.Warn("invalid or expired oauth state", zap.String("provider", h.Provider.Name))
		h.failLogin(w, r, "invalid_state")
		return
	}
	if err != nil {
		h.Log.Error("failed to validate oauth state", zap.Error(err))
		h.failLogin(w, r, "internal")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.failLogin(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("oauth code exchange failed",
			zap.String("provider", h.Provider.Name), zap.Error(err))
		h.failLogin(w, r, "token_exchange")
		return
	}

	info, err := h.Provider.FetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("oauth user info fetch failed",
			zap.String("provider", h.Provider.Name), zap.Error(err))
		h.failLogin(w, r, "user_info")
		return
	}

	user, err := h.Users.FindOrCreateByIdentity(ctx, h.Provider.Name, info.ID, info.Email, info.Name)
	if err != nil {
		h.Log.Error("identity resolution failed", zap.Error(err))
		h.failLogin(w, r, "internal")
		return
	}

	if h.Provider.AdminPortal && h.AutoPromoteFirstAdmin {
		h.maybePromoteFirstAdmin(ctx, user.ID, user.Email)
	}

	sess, err := h.Sessions.Create(ctx, user.ID, h.Provider.Name, st.SiteID)
	if err != nil {
		h.Log.Error("session creation failed", zap.Error(err))
		h.failLogin(w, r, "session")
		return
	}
	if err := h.SessionMgr.Issue(w, r, sess.ID); err != nil {
		h.Log.Error("session cookie issue failed", zap.Error(err))
		h.failLogin(w, r, "session")
		return
	}

	h.Log.Info("user signed in",
		zap.String("provider", h.Provider.Name),
		zap.String("user_id", user.ID.Hex()),
		zap.String("site", st.SitePath))

	fallback := "/"
	if st.SitePath != "" {
		fallback = st.SitePath + "/"
	}
	http.Redirect(w, r, urlutil.SafeReturn(st.ReturnTo, "", fallback), http.StatusSeeOther)
}

// maybePromoteFirstAdmin grants global admin to the very first admin
// portal sign-in. The bootstrap marker makes the promotion happen exactly
// once across all processes.
func (h *Handler) maybePromoteFirstAdmin(ctx context.Context, userID primitive.ObjectID, email string) {
	count, err := h.Admins.CountGlobalAdmins(ctx)
	if err != nil {
		h.Log.Error("global admin count failed", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	claimed, err := h.Admins.ClaimBootstrap(ctx)
	if err != nil {
		h.Log.Error("bootstrap claim failed", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	if err := h.Admins.AddGlobalAdmin(ctx, userID, nil); err != nil {
		h.Log.Error("first admin promotion failed", zap.Error(err))
		return
	}
	h.Log.Info("first admin promoted",
		zap.String("user_id", userID.Hex()),
		zap.String("email", email))
}

// failLogin sends the visitor back to where an error can be shown.
func (h *Handler) failLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/_auth/login?error="+code, http.StatusSeeOther)
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
