// internal/app/features/siteadmin/admins.go
package siteadmin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// adminPayload is an admin grant joined with its user record.
type adminPayload struct {
	UserID      primitive.ObjectID `json:"user_id"`
	Email       string             `json:"email,omitempty"`
	DisplayName string             `json:"display_name,omitempty"`
	AddedAt     time.Time          `json:"added_at"`
}

type addAdminPayload struct {
	Email string `json:"email"`
}

func (h *Handler) joinUser(r *http.Request, userID primitive.ObjectID, addedAt time.Time) adminPayload {
	out := adminPayload{UserID: userID, AddedAt: addedAt}
	user, err := h.Users.GetByID(r.Context(), userID)
	if err == nil {
		out.Email = user.Email
		out.DisplayName = user.DisplayName
	} else if err != users.ErrNotFound {
		h.Log.Warn("admin user lookup failed", zap.Error(err))
	}
	return out
}

// ListSiteAdmins handles GET /sites/{siteID}/admins.
func (h *Handler) ListSiteAdmins(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	grants, err := h.Admins.ListSiteAdmins(r.Context(), site.ID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	out := make([]adminPayload, 0, len(grants))
	for _, g := range grants {
		out = append(out, h.joinUser(r, g.UserID, g.AddedAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": out})
}

// AddSiteAdmin handles POST /sites/{siteID}/admins. The user is looked up
// or created by email.
func (h *Handler) AddSiteAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := h.identity(r)
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	var in addAdminPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.Users.EnsureByEmail(ctx, in.Email)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Admins.AddSiteAdmin(ctx, site.ID, user.ID, &ident.UserID); err != nil {
		storeError(w, h.Log, err)
		return
	}

	h.Log.Info("site admin added",
		zap.String("site", site.Path),
		zap.String("user_id", user.ID.Hex()))
	writeJSON(w, http.StatusCreated, h.joinUser(r, user.ID, time.Now().UTC()))
}

// RemoveSiteAdmin handles DELETE /sites/{siteID}/admins/{userID}.
func (h *Handler) RemoveSiteAdmin(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.Admins.RemoveSiteAdmin(r.Context(), site.ID, userID); err != nil {
		if err == admins.ErrNotFound {
			writeError(w, http.StatusNotFound, "not a site admin")
			return
		}
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListGlobalAdmins handles GET /admins.
func (h *Handler) ListGlobalAdmins(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Admins.ListGlobalAdmins(r.Context())
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	out := make([]adminPayload, 0, len(grants))
	for _, g := range grants {
		out = append(out, h.joinUser(r, g.UserID, g.AddedAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": out})
}

// AddGlobalAdmin handles POST /admins.
func (h *Handler) AddGlobalAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := h.identity(r)

	var in addAdminPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.Users.EnsureByEmail(ctx, in.Email)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Admins.AddGlobalAdmin(ctx, user.ID, &ident.UserID); err != nil {
		storeError(w, h.Log, err)
		return
	}

	h.Log.Info("global admin added", zap.String("user_id", user.ID.Hex()))
	writeJSON(w, http.StatusCreated, h.joinUser(r, user.ID, time.Now().UTC()))
}

// RemoveGlobalAdmin handles DELETE /admins/{userID}. An admin cannot
// remove their own grant.
func (h *Handler) RemoveGlobalAdmin(w http.ResponseWriter, r *http.Request) {
	ident := h.identity(r)

	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if userID == ident.UserID {
		writeError(w, http.StatusBadRequest, "cannot remove your own admin access")
		return
	}

	if err := h.Admins.RemoveGlobalAdmin(r.Context(), userID); err != nil {
		if err == admins.ErrNotFound {
			writeError(w, http.StatusNotFound, "not a global admin")
			return
		}
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
