// internal/app/features/siteadmin/sites.go
package siteadmin

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/system/htmlsanitize"
	"github.com/ciaranj/piglet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Site path segments. The double underscore is the on-disk escape for
// "/", so it can never appear inside a segment.
var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateSitePath checks a candidate site path for canonical form.
func validateSitePath(p string) error {
	if p == "/" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		return errors.New("path must start with /")
	}
	if strings.HasSuffix(p, "/") {
		return errors.New("path must not end with /")
	}
	if strings.HasPrefix(p, "/_") {
		return errors.New("paths under /_ are reserved")
	}
	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "" {
			return errors.New("path has an empty segment")
		}
		if seg == "." || seg == ".." {
			return errors.New("path has a relative segment")
		}
		if strings.Contains(seg, "__") {
			return errors.New("path segments must not contain __")
		}
		if !segmentPattern.MatchString(seg) {
			return errors.New("path segments may only use letters, digits, dot, dash and underscore")
		}
	}
	return nil
}

type sitePayload struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ListSites handles GET /sites. Global admins see every site; site admins
// see the sites they administer.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := h.identity(r)

	all, err := h.Sites.List(ctx)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	if ident.GlobalAdmin {
		writeJSON(w, http.StatusOK, map[string]any{"sites": all})
		return
	}

	grants, err := h.Admins.ListByUser(ctx, ident.UserID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	allowed := make(map[primitive.ObjectID]bool, len(grants))
	for _, g := range grants {
		allowed[g.SiteID] = true
	}

	mine := make([]models.Site, 0, len(grants))
	for _, s := range all {
		if allowed[s.ID] {
			mine = append(mine, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": mine})
}

// CreateSite handles POST /sites. A non-global admin who creates a site
// becomes its site admin.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := h.identity(r)

	var in sitePayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Name = htmlsanitize.Text(in.Name)
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := validateSitePath(in.Path); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	site, err := h.Sites.Create(ctx, in.Path, in.Name, ident.UserID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	if !ident.GlobalAdmin {
		if err := h.Admins.AddSiteAdmin(ctx, site.ID, ident.UserID, &ident.UserID); err != nil {
			h.Log.Error("creator admin grant failed",
				zap.String("site", site.Path), zap.Error(err))
		}
	}

	h.Log.Info("site created",
		zap.String("path", site.Path),
		zap.String("created_by", ident.UserID.Hex()))
	writeJSON(w, http.StatusCreated, site)
}

// GetSite handles GET /sites/{siteID}.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// UpdateSite handles PUT /sites/{siteID}. A path change also moves the
// site's content directory.
func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	var in sitePayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Path == "" {
		in.Path = site.Path
	}
	in.Name = htmlsanitize.Text(in.Name)
	if in.Name == "" {
		in.Name = site.Name
	}
	if err := validateSitePath(in.Path); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Sites.Update(ctx, site.ID, in.Path, in.Name)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	if updated.Path != site.Path {
		if err := h.Content.MoveSite(ctx, site, updated.Path); err != nil {
			// Put the record back so path and directory stay in step.
			if _, revertErr := h.Sites.Update(ctx, site.ID, site.Path, updated.Name); revertErr != nil {
				h.Log.Error("path revert failed after move failure",
					zap.String("site", site.Path), zap.Error(revertErr))
			}
			storeError(w, h.Log, err)
			return
		}
		h.Log.Info("site moved",
			zap.String("from", site.Path), zap.String("to", updated.Path))
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteSite handles DELETE /sites/{siteID}: the site record plus all
// dependent records, sessions, and on-disk content.
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	if err := h.Content.DeleteSiteContent(ctx, site); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.SiteAuth.DeleteBySite(ctx, site.ID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.SiteUsers.DeleteBySite(ctx, site.ID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Sessions.DeleteBySite(ctx, site.ID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Tokens.DeleteBySite(ctx, site.ID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Admins.DeleteBySite(ctx, site.ID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	if err := h.Sites.Delete(ctx, site.ID); err != nil && err != sites.ErrNotFound {
		storeError(w, h.Log, err)
		return
	}

	h.Log.Info("site deleted", zap.String("path", site.Path))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
