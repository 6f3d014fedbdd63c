// internal/app/features/siteadmin/users.go
package siteadmin

import (
	"net/http"
	"time"

	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Users.List(r.Context())
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list})
}

// GetUser handles GET /users/{userID}, including the user's linked
// provider identities.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err == users.ErrNotFound {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	identities, err := h.Users.ListIdentities(ctx, userID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"identities": identities,
	})
}

// siteUserPayload is a registration joined with its user record.
type siteUserPayload struct {
	UserID       primitive.ObjectID `json:"user_id"`
	Email        string             `json:"email,omitempty"`
	DisplayName  string             `json:"display_name,omitempty"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// ListSiteUsers handles GET /sites/{siteID}/users: the users registered
// with a register-flow site.
func (h *Handler) ListSiteUsers(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	regs, err := h.SiteUsers.ListBySite(r.Context(), site.ID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	out := make([]siteUserPayload, 0, len(regs))
	for _, reg := range regs {
		p := siteUserPayload{UserID: reg.UserID, RegisteredAt: reg.CreatedAt}
		if user, err := h.Users.GetByID(r.Context(), reg.UserID); err == nil {
			p.Email = user.Email
			p.DisplayName = user.DisplayName
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// RemoveSiteUser handles DELETE /sites/{siteID}/users/{userID}.
func (h *Handler) RemoveSiteUser(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.SiteUsers.Unregister(r.Context(), site.ID, userID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
