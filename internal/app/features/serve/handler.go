// internal/app/features/serve/handler.go

// Package serve is the public face of the host: it resolves every
// request path to a site, applies that site's access policy, and serves
// files from the active content version.
package serve

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"github.com/ciaranj/piglet/internal/app/system/policy/sitepolicy"
	"github.com/ciaranj/piglet/internal/app/system/resolver"
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"github.com/ciaranj/piglet/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves site content.
type Handler struct {
	Resolver  *resolver.Resolver
	SiteAuth  *siteauth.Store
	SiteUsers *siteusers.Store
	Content   *content.Manager
	Log       *zap.Logger
}

// NewHandler constructs the content handler.
func NewHandler(res *resolver.Resolver, siteAuth *siteauth.Store, siteUsers *siteusers.Store, contentMgr *content.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		Resolver:  res,
		SiteAuth:  siteAuth,
		SiteUsers: siteUsers,
		Content:   contentMgr,
		Log:       logger,
	}
}

// Serve handles GET and HEAD for every non-reserved path.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := h.Resolver.Resolve(ctx, r.URL.Path)
	if err == resolver.ErrNoSite || err == resolver.ErrReservedPath {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.Log.Error("site resolution failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	decision, authTypes, err := h.decide(r, m.Site)
	if err != nil {
		h.Log.Error("policy evaluation failed", zap.String("site", m.Site.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch decision {
	case sitepolicy.Allow:
		// fall through to file serving
	case sitepolicy.Deny:
		h.forbidden(w, r)
		return
	case sitepolicy.RedirectLogin:
		h.redirectLogin(w, r, m.Site, authTypes)
		return
	case sitepolicy.RedirectRegister:
		h.redirect(w, r, "/_auth/register?"+siteQuery(m.Site, auth.CurrentURI(r)))
		return
	}

	// Site roots are served with a trailing slash so relative asset links
	// inside the content resolve correctly.
	if m.AtSiteRoot && r.URL.Path != "/" && !strings.HasSuffix(r.URL.Path, "/") {
		http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
		return
	}

	h.serveFile(w, r, m)
}

// decide gathers the policy inputs and evaluates them.
func (h *Handler) decide(r *http.Request, site models.Site) (sitepolicy.Kind, []string, error) {
	ctx := r.Context()

	configs, err := h.SiteAuth.ListConfigs(ctx, site.ID)
	if err != nil {
		return 0, nil, err
	}

	in := sitepolicy.Input{Site: site, Configs: configs}

	emailEnabled := false
	for _, c := range configs {
		if c.AuthType == models.AuthEmail && c.Enabled {
			emailEnabled = true
		}
	}
	if emailEnabled {
		settings, err := h.SiteAuth.GetEmailSettings(ctx, site.ID)
		if err == nil {
			in.Email = &settings
		} else if err != siteauth.ErrNotFound {
			return 0, nil, err
		}
	}

	if ident, ok := auth.CurrentIdentity(r); ok {
		in.Session = &models.Session{
			ID:       ident.SessionID,
			UserID:   ident.UserID,
			AuthType: ident.AuthType,
			SiteID:   ident.SiteID,
		}
		in.User = &models.User{
			ID:          ident.UserID,
			Email:       ident.Email,
			DisplayName: ident.DisplayName,
		}
		in.GlobalAdmin = ident.GlobalAdmin

		if emailEnabled && in.Email != nil && in.Email.FlowType == models.FlowRegister {
			registered, err := h.SiteUsers.IsRegistered(ctx, site.ID, ident.UserID)
			if err != nil {
				return 0, nil, err
			}
			in.Registered = registered
		}
	}

	d := sitepolicy.Decide(in)
	return d.Kind, d.AuthTypes, nil
}

// serveFile maps the remainder onto the active version directory and
// serves it with the right caching headers.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, m resolver.Match) {
	dir, err := h.Content.ActiveVersionDir(r.Context(), m.Site)
	if err == versions.ErrNoActive || err == content.ErrContentMissing {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.Log.Error("active version lookup failed", zap.String("site", m.Site.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rel := strings.TrimPrefix(m.Remainder, "/")
	if rel == "" {
		rel = "index.html"
	}

	full, err := sitefs.ResolveWithinVersion(dir, rel)
	if err != nil {
		// Traversal attempts look like any other missing file.
		http.NotFound(w, r)
		return
	}

	info, statErr := os.Stat(full)
	switch {
	case statErr == nil && info.IsDir():
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		full = filepath.Join(full, "index.html")
		info, statErr = os.Stat(full)
	case statErr != nil:
		// Extensionless page URLs fall back to the .html file.
		if alt := full + ".html"; !strings.HasSuffix(full, ".html") {
			if altInfo, altErr := os.Stat(alt); altErr == nil && !altInfo.IsDir() {
				full, info, statErr = alt, altInfo, nil
			}
		}
	}
	if statErr != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if strings.HasSuffix(full, ".html") {
		// Pages revalidate so a newly activated version shows up at once;
		// fingerprinted assets can be cached.
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, filepath.Base(full), info.ModTime(), f)
}

// redirectLogin sends the visitor to sign in. A single OAuth provider is
// dialed directly; anything else goes through the chooser page.
func (h *Handler) redirectLogin(w http.ResponseWriter, r *http.Request, site models.Site, authTypes []string) {
	q := siteQuery(site, auth.CurrentURI(r))
	dest := "/_auth/login?" + q
	if len(authTypes) == 1 {
		switch authTypes[0] {
		case models.AuthGoogle, models.AuthMicrosoft:
			dest = "/_auth/" + authTypes[0] + "/login?" + q
		}
	}
	h.redirect(w, r, dest)
}

// redirect answers browsers with a redirect and API callers with 401.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, dest string) {
	if auth.WantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":    "authentication required",
		"login_at": dest,
	})
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	if auth.WantsHTML(r) {
		http.Error(w, "You do not have access to this site.", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "access denied"})
}

func siteQuery(site models.Site, returnTo string) string {
	q := url.Values{}
	q.Set("site", site.Path)
	q.Set("return", returnTo)
	return q.Encode()
}
