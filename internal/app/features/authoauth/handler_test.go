// internal/app/features/authoauth/handler_test.go
package authoauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/ciaranj/piglet/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type loginEnv struct {
	handler  *Handler
	router   chi.Router
	fixtures *testutil.Fixtures
}

func newLoginEnv(t *testing.T, db *mongo.Database) *loginEnv {
	t.Helper()
	logger := zap.NewNop()

	mgr, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "piglet_session", "", false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	h := NewHandler(Google("client-id", "client-secret"), mgr,
		sessions.New(db, 0), users.New(db), sites.New(db), siteauth.New(db),
		admins.New(db), oauthstate.New(db, 0),
		"https://docs.example.com", false, logger)

	return &loginEnv{
		handler:  h,
		router:   Routes(h),
		fixtures: testutil.NewFixtures(t, db),
	}
}

func (e *loginEnv) login(site, returnTo string) *httptest.ResponseRecorder {
	target := "/login"
	if site != "" {
		target += "?site=" + url.QueryEscape(site)
		if returnTo != "" {
			target += "&return=" + url.QueryEscape(returnTo)
		}
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestServeLogin_ProviderNotEnabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newLoginEnv(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")

	// No auth config for this provider at all.
	if rec := e.login("/docs", ""); rec.Code != http.StatusForbidden {
		t.Errorf("no config: status = %d, want 403", rec.Code)
	}

	// Config present but disabled.
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthGoogle, false)
	if rec := e.login("/docs", ""); rec.Code != http.StatusForbidden {
		t.Errorf("disabled config: status = %d, want 403", rec.Code)
	}
}

func TestServeLogin_EnabledRedirectsToConsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newLoginEnv(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthGoogle, true)

	rec := e.login("/docs", "/docs/guide.html")
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307, body %s", rec.Code, rec.Body.String())
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse consent URL: %v", err)
	}
	if got := loc.Query().Get("redirect_uri"); got != "https://docs.example.com/_auth/google/callback" {
		t.Errorf("redirect_uri = %q", got)
	}

	// The state is persisted with the site scope and return URL.
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("consent URL has no state")
	}
	st, err := e.handler.StateStore.Validate(ctx, state, "google")
	if err != nil {
		t.Fatalf("state not persisted: %v", err)
	}
	if st.SiteID == nil || *st.SiteID != site.ID {
		t.Errorf("state site = %v, want %s", st.SiteID, site.ID.Hex())
	}
	if st.ReturnTo != "/docs/guide.html" {
		t.Errorf("state return = %q", st.ReturnTo)
	}
}

func TestServeLogin_UnknownSite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newLoginEnv(t, db)

	if rec := e.login("/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
