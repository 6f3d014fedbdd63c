// internal/app/features/siteadmin/respond.go
package siteadmin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps the store and content sentinel errors onto HTTP status
// codes; anything unrecognized is logged and answered as a 500. Errors
// arrive wrapped from the content manager, hence errors.Is.
func storeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, sites.ErrNotFound), errors.Is(err, versions.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, versions.ErrNoActive):
		writeError(w, http.StatusNotFound, "no active version")
	case errors.Is(err, sites.ErrPathTaken):
		writeError(w, http.StatusConflict, "path already in use")
	case errors.Is(err, content.ErrVersionActive):
		writeError(w, http.StatusConflict, "version is active")
	case errors.Is(err, content.ErrContentMissing):
		writeError(w, http.StatusBadRequest, "version content missing on disk")
	default:
		log.Error("admin api request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
