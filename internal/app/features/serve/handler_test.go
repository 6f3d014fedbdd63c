package serve_test

import (
	"archive/zip"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ciaranj/piglet/internal/app/features/serve"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/versions"
	"github.com/ciaranj/piglet/internal/app/system/content"
	"github.com/ciaranj/piglet/internal/app/system/resolver"
	"github.com/ciaranj/piglet/internal/app/system/sitefs"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/ciaranj/piglet/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	handler *serve.Handler
	manager *content.Manager
	sites   *sites.Store
	auth    *siteauth.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fs, err := sitefs.New(t.TempDir())
	if err != nil {
		t.Fatalf("sitefs.New failed: %v", err)
	}

	siteStore := sites.New(db)
	authStore := siteauth.New(db)
	userStore := siteusers.New(db)
	manager := content.NewManager(versions.New(db, zap.NewNop()), fs, zap.NewNop())

	h := serve.NewHandler(resolver.New(siteStore), authStore, userStore, manager, zap.NewNop())
	return &env{handler: h, manager: manager, sites: siteStore, auth: authStore}
}

// publish creates a site with content and the given enabled auth types.
func (e *env) publish(t *testing.T, path string, files map[string]string, authTypes ...string) models.Site {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site, err := e.sites.Create(ctx, path, "Test Site", primitive.NewObjectID())
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	for _, at := range authTypes {
		if err := e.auth.UpsertConfig(ctx, site.ID, at, true, nil); err != nil {
			t.Fatalf("enable auth: %v", err)
		}
	}

	if files != nil {
		archive := filepath.Join(t.TempDir(), "site.zip")
		f, err := os.Create(archive)
		if err != nil {
			t.Fatalf("create archive: %v", err)
		}
		zw := zip.NewWriter(f)
		for name, body := range files {
			w, err := zw.Create(name)
			if err != nil {
				t.Fatalf("add entry: %v", err)
			}
			if _, err := w.Write([]byte(body)); err != nil {
				t.Fatalf("write entry: %v", err)
			}
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("close zip: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close file: %v", err)
		}
		if _, err := e.manager.Upload(ctx, site, archive, "test", primitive.NewObjectID(), true); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	return site
}

func get(h *serve.Handler, target string, browser bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if browser {
		req.Header.Set("Accept", "text/html")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Serve(rec, req)
	return rec
}

func TestServe_AnonymousSite(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{
		"index.html": "<h1>welcome</h1>",
		"css/a.css":  "body{}",
	}, models.AuthAnonymous)

	rec := get(e.handler, "/docs/", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "welcome") {
		t.Error("index not served")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("html Cache-Control = %q", cc)
	}

	rec = get(e.handler, "/docs/css/a.css", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("asset status = %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age") {
		t.Errorf("asset Cache-Control = %q", cc)
	}
}

func TestServe_SiteRootRedirect(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthAnonymous)

	rec := get(e.handler, "/docs", true)
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/docs/" {
		t.Errorf("location = %q", loc)
	}
}

func TestServe_DirectoryRedirect(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"guide/index.html": "guide"}, models.AuthAnonymous)

	rec := get(e.handler, "/docs/guide", true)
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/docs/guide/" {
		t.Errorf("location = %q", loc)
	}

	rec = get(e.handler, "/docs/guide/", true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "guide") {
		t.Errorf("directory index not served: %d", rec.Code)
	}
}

func TestServe_HTMLExtensionFallback(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"page.html": "the page"}, models.AuthAnonymous)

	rec := get(e.handler, "/docs/page", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "the page") {
		t.Error("html fallback not served")
	}
}

func TestServe_MissingFile(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthAnonymous)

	if rec := get(e.handler, "/docs/nope.html", true); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_TraversalBlocked(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthAnonymous)

	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	req.URL.Path = "/docs/../../../etc/passwd"
	rec := httptest.NewRecorder()
	e.handler.Serve(rec, req)
	if rec.Code == http.StatusOK {
		t.Error("traversal request must not serve content")
	}
}

func TestServe_UnknownSite(t *testing.T) {
	e := newEnv(t)
	if rec := get(e.handler, "/nowhere/", true); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_NoActiveVersion(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", nil, models.AuthAnonymous)

	if rec := get(e.handler, "/docs/", true); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_NoAuthMethodsDenies(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"})

	if rec := get(e.handler, "/docs/", true); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestServe_LoginRedirect_SingleProvider(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthGoogle)

	rec := get(e.handler, "/docs/guide", true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Path != "/_auth/google/login" {
		t.Errorf("login path = %q", loc.Path)
	}
	if loc.Query().Get("site") != "/docs" {
		t.Errorf("site param = %q", loc.Query().Get("site"))
	}
	if loc.Query().Get("return") != "/docs/guide" {
		t.Errorf("return param = %q", loc.Query().Get("return"))
	}
}

func TestServe_LoginRedirect_Chooser(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthGoogle, models.AuthEmail)

	rec := get(e.handler, "/docs/", true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Path != "/_auth/login" {
		t.Errorf("login path = %q", loc.Path)
	}
}

func TestServe_APIGets401NotRedirect(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "/docs", map[string]string{"index.html": "x"}, models.AuthGoogle)

	rec := get(e.handler, "/docs/", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestServe_SignedInVisitor(t *testing.T) {
	e := newEnv(t)
	site := e.publish(t, "/docs", map[string]string{"index.html": "secret docs"}, models.AuthGoogle)

	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	req.Header.Set("Accept", "text/html")
	req = testutil.WithIdentity(req, testutil.VisitorIdentity(primitive.NewObjectID(), models.AuthGoogle, site.ID))
	rec := httptest.NewRecorder()
	e.handler.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "secret docs") {
		t.Error("content not served to signed-in visitor")
	}
}
