// internal/app/features/authsession/handler.go

// Package authsession exposes the session-facing endpoints under /_auth:
// the current-session probe, logout, and the login and register pages.
package authsession

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

// Handler serves the session endpoints.
type Handler struct {
	SessionMgr *auth.SessionManager
	Sessions   *sessions.Store
	Sites      *sites.Store
	SiteAuth   *siteauth.Store
	Admins     *admins.Store
	Log        *zap.Logger
}

// NewHandler constructs the session endpoints handler.
func NewHandler(mgr *auth.SessionManager, sessStore *sessions.Store, siteStore *sites.Store, authStore *siteauth.Store, adminStore *admins.Store, logger *zap.Logger) *Handler {
	return &Handler{
		SessionMgr: mgr,
		Sessions:   sessStore,
		Sites:      siteStore,
		SiteAuth:   authStore,
		Admins:     adminStore,
		Log:        logger,
	}
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	AuthType      string `json:"auth_type,omitempty"`
	SitePath      string `json:"site_path,omitempty"`
	IsGlobalAdmin bool   `json:"is_global_admin"`
	IsSiteAdmin   bool   `json:"is_site_admin"`
}

// Session handles GET /_auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ident, ok := auth.CurrentIdentity(r)
	if !ok {
		_ = json.NewEncoder(w).Encode(sessionResponse{})
		return
	}

	resp := sessionResponse{
		Authenticated: true,
		Email:         ident.Email,
		DisplayName:   ident.DisplayName,
		AuthType:      ident.AuthType,
		IsGlobalAdmin: ident.GlobalAdmin,
	}

	if ident.SiteID != nil {
		site, err := h.Sites.GetByID(r.Context(), *ident.SiteID)
		if err == nil {
			resp.SitePath = site.Path
		} else if err != sites.ErrNotFound {
			h.Log.Error("session site lookup failed", zap.Error(err))
		}
	}

	isSiteAdmin, err := h.Admins.IsAnySiteAdmin(r.Context(), ident.UserID)
	if err != nil {
		h.Log.Error("site admin lookup failed", zap.Error(err))
	}
	resp.IsSiteAdmin = isSiteAdmin

	_ = json.NewEncoder(w).Encode(resp)
}

// Logout handles POST /_auth/logout. The server-side session is revoked
// first so the cookie becomes worthless even if clearing it fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if ident, ok := auth.CurrentIdentity(r); ok {
		if err := h.Sessions.Delete(r.Context(), ident.SessionID); err != nil {
			h.Log.Error("session revocation failed", zap.Error(err))
		}
	}
	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Warn("clearing session cookie failed", zap.Error(err))
	}

	ret := urlutil.SafeReturn(query.Get(r, "return"), "", "/")
	if auth.WantsHTML(r) {
		http.Redirect(w, r, ret, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

type loginOption struct {
	AuthType string
	Label    string
	URL      string
}

type loginPageData struct {
	SiteName string
	SitePath string
	Options  []loginOption
	ShowCode bool
}

// Login handles GET /_auth/login: the method chooser for a site.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sitePath := query.Get(r, "site")
	returnTo := urlutil.SafeReturn(query.Get(r, "return"), "", sitePath)

	site, err := h.Sites.GetByPath(r.Context(), sitePath)
	if err != nil {
		h.Log.Error("login site lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.NotFound(w, r)
		return
	}

	configs, err := h.SiteAuth.ListConfigs(r.Context(), site.ID)
	if err != nil {
		h.Log.Error("login config lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := loginPageData{SiteName: site.Name, SitePath: site.Path}
	q := "site=" + template.URLQueryEscaper(site.Path) + "&return=" + template.URLQueryEscaper(returnTo)
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		switch c.AuthType {
		case models.AuthGoogle:
			data.Options = append(data.Options, loginOption{
				AuthType: c.AuthType,
				Label:    "Sign in with Google",
				URL:      "/_auth/google/login?" + q,
			})
		case models.AuthMicrosoft:
			data.Options = append(data.Options, loginOption{
				AuthType: c.AuthType,
				Label:    "Sign in with Microsoft",
				URL:      "/_auth/microsoft/login?" + q,
			})
		case models.AuthEmail:
			data.ShowCode = true
			data.Options = append(data.Options, loginOption{
				AuthType: c.AuthType,
				Label:    "Sign in with email",
				URL:      "/_auth/email?" + q,
			})
		}
	}

	renderPage(w, loginTemplate, data)
}

// Register handles GET /_auth/register: the registration page for sites
// using the email register flow.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sitePath := query.Get(r, "site")

	site, err := h.Sites.GetByPath(r.Context(), sitePath)
	if err != nil {
		h.Log.Error("register site lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.NotFound(w, r)
		return
	}

	renderPage(w, registerTemplate, loginPageData{SiteName: site.Name, SitePath: site.Path})
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Sign in to {{.SiteName}}</title></head>
<body>
  <h1>Sign in to {{.SiteName}}</h1>
  <ul>
  {{range .Options}}
    <li><a href="{{.URL}}">{{.Label}}</a></li>
  {{end}}
  </ul>
</body>
</html>`))

var registerTemplate = template.Must(template.New("register").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Register for {{.SiteName}}</title></head>
<body>
  <h1>Register for {{.SiteName}}</h1>
  <form method="POST" action="/_auth/email/register">
    <input type="hidden" name="site" value="{{.SitePath}}">
    <label>Email address <input type="email" name="email" required></label>
    <button type="submit">Register</button>
  </form>
</body>
</html>`))
