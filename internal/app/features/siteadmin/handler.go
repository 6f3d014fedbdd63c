// internal/app/features/siteadmin/handler.go

// Package siteadmin is the management API mounted at /_pigsty/api. It is
// consumed by the admin SPA, so every response is JSON and the router is
// CORS-enabled for the configured origins.
package siteadmin

import (
	"net/http"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler implements the admin API endpoints.
type Handler struct {
	Sites     *sites.Store
	SiteAuth  *siteauth.Store
	SiteUsers *siteusers.Store
	Users     *users.Store
	Admins    *admins.Store
	Sessions  *sessions.Store
	Tokens    *emailtokens.Store
	Versions  *versions.Store
	Content   *content.Manager
	FS        *sitefs.Store
	Log       *zap.Logger
}

// siteFromURL loads the site named by the siteID URL parameter, writing
// the error response itself when the lookup fails.
func (h *Handler) siteFromURL(w http.ResponseWriter, r *http.Request) (models.Site, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "siteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid site id")
		return models.Site{}, false
	}

	s, err := h.Sites.GetByID(r.Context(), id)
	if err == sites.ErrNotFound {
		writeError(w, http.StatusNotFound, "site not found")
		return models.Site{}, false
	}
	if err != nil {
		h.Log.Error("site lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return models.Site{}, false
	}
	return s, true
}

// identity returns the request identity. The authorization middlewares
// guarantee it is present on every admin route.
func (h *Handler) identity(r *http.Request) *auth.Identity {
	ident, _ := auth.CurrentIdentity(r)
	return ident
}
