// internal/app/features/siteadmin/versions.go
package siteadmin

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ciaranj/piglet/internal/app/system/htmlsanitize"
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxUploadBytes caps a single content archive.
const maxUploadBytes = 500 << 20

// versionPayload is a content version with the human-readable size the
// admin UI displays.
type versionPayload struct {
	models.ContentVersion
	SizeFormatted string `json:"size_formatted"`
}

func toPayload(v models.ContentVersion) versionPayload {
	return versionPayload{ContentVersion: v, SizeFormatted: sitefs.FormatBytes(v.SizeBytes)}
}

// ListVersions handles GET /sites/{siteID}/versions.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	list, err := h.Versions.ListBySite(r.Context(), site.ID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	out := make([]versionPayload, 0, len(list))
	for _, v := range list {
		out = append(out, toPayload(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

// ActiveVersion handles GET /sites/{siteID}/versions/active.
func (h *Handler) ActiveVersion(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	v, err := h.Versions.GetActive(r.Context(), site.ID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(v))
}

// Upload handles POST /sites/{siteID}/upload: a multipart zip archive,
// staged to the uploads directory and extracted into a new version.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := h.identity(r)
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	description := htmlsanitize.Text(r.FormValue("description"))
	// Uploads go live immediately unless the caller opts out.
	activate := r.FormValue("activate") != "false"

	staged := filepath.Join(h.FS.UploadsDir(), uuid.NewString()+".zip")
	dst, err := os.Create(staged)
	if err != nil {
		h.Log.Error("upload staging failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer os.Remove(staged)

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		h.Log.Error("upload staging failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := dst.Close(); err != nil {
		h.Log.Error("upload staging failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	res, err := h.Content.Upload(ctx, site, staged, description, ident.UserID, activate)
	if err != nil {
		if res != nil {
			// Extraction succeeded but activation did not.
			storeError(w, h.Log, err)
			return
		}
		h.Log.Warn("content upload rejected",
			zap.String("site", site.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not extract archive")
		return
	}

	body := map[string]any{
		"success":             true,
		"version":             toPayload(res.Version),
		"activated":           res.Activated,
		"had_active_content":  res.HadActiveContent,
		"previous_version_id": nil,
	}
	if res.PreviousVersion != nil {
		body["previous_version_id"] = res.PreviousVersion.Hex()
	}
	writeJSON(w, http.StatusCreated, body)
}

// ActivateVersion handles PUT /sites/{siteID}/versions/{versionID}/activate.
func (h *Handler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}
	versionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "versionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	prev, err := h.Content.Activate(r.Context(), site, versionID)
	if err != nil {
		storeError(w, h.Log, err)
		return
	}

	body := map[string]any{
		"success":             true,
		"had_active_content":  prev != nil,
		"previous_version_id": nil,
	}
	if prev != nil {
		body["previous_version_id"] = prev.Hex()
	}
	writeJSON(w, http.StatusOK, body)
}

// DeleteVersion handles DELETE /sites/{siteID}/versions/{versionID}.
func (h *Handler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromURL(w, r)
	if !ok {
		return
	}
	versionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "versionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	if err := h.Content.DeleteVersion(r.Context(), site, versionID); err != nil {
		storeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
