// internal/app/system/authz/authz.go

// Package authz holds the admin API authorization middlewares. They run
// after auth.LoadIdentity and answer in JSON because the admin API is
// consumed programmatically.
package authz

import (
	"encoding/json"
	"net/http"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Guard wires authorization checks against the admin grants store.
type Guard struct {
	Admins *admins.Store
	Logger *zap.Logger
}

// RequireGlobalAdmin admits only global admins.
func (g *Guard) RequireGlobalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.CurrentIdentity(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !ident.GlobalAdmin {
			writeError(w, http.StatusForbidden, "global admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnyAdmin admits global admins and users who administer at least
// one site. Used for the site listing, where per-site filtering happens
// in the handler.
func (g *Guard) RequireAnyAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.CurrentIdentity(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if ident.GlobalAdmin {
			next.ServeHTTP(w, r)
			return
		}

		isAdmin, err := g.Admins.IsAnySiteAdmin(r.Context(), ident.UserID)
		if err != nil {
			g.Logger.Error("site admin lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !isAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSiteAdmin admits global admins and admins of the site named by
// the given URL parameter.
func (g *Guard) RequireSiteAdmin(urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := auth.CurrentIdentity(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if ident.GlobalAdmin {
				next.ServeHTTP(w, r)
				return
			}

			siteID, err := primitive.ObjectIDFromHex(chi.URLParam(r, urlParam))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid site id")
				return
			}

			isAdmin, err := g.Admins.IsSiteAdmin(r.Context(), siteID, ident.UserID)
			if err != nil {
				g.Logger.Error("site admin lookup failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !isAdmin {
				writeError(w, http.StatusForbidden, "site admin required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
