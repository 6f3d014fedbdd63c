// internal/app/features/siteadmin/respond_test.go
package siteadmin

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"go.uber.org/zap"
)

func TestStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"site not found", sites.ErrNotFound, http.StatusNotFound},
		{"version not found", versions.ErrNotFound, http.StatusNotFound},
		{"no active version", versions.ErrNoActive, http.StatusNotFound},
		{"path taken", sites.ErrPathTaken, http.StatusConflict},
		{"version active", content.ErrVersionActive, http.StatusConflict},
		{"content missing on disk", content.ErrContentMissing, http.StatusBadRequest},
		{"wrapped content missing", fmt.Errorf("activate uploaded version: %w", content.ErrContentMissing), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("remove version: %w", versions.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			storeError(rec, zap.NewNop(), c.err)
			if rec.Code != c.want {
				t.Errorf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}
