// internal/app/features/authemail/handler_test.go
package authemail

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/mailer"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/ciaranj/piglet/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// captureSender records outgoing mail instead of delivering it.
type captureSender struct {
	sent []mailer.Email
}

func (c *captureSender) Send(email mailer.Email) error {
	c.sent = append(c.sent, email)
	return nil
}

func (c *captureSender) last(t *testing.T) mailer.Email {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no email was sent")
	}
	return c.sent[len(c.sent)-1]
}

type env struct {
	handler   *Handler
	router    chi.Router
	sender    *captureSender
	fixtures  *testutil.Fixtures
	siteAuth  *siteauth.Store
	siteUsers *siteusers.Store
	users     *users.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)

	mgr, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "piglet_session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	sender := &captureSender{}
	e := &env{
		sender:    sender,
		fixtures:  testutil.NewFixtures(t, db),
		siteAuth:  siteauth.New(db),
		siteUsers: siteusers.New(db),
		users:     users.New(db),
	}
	e.handler = NewHandler(
		e.users,
		sites.New(db),
		e.siteAuth,
		e.siteUsers,
		emailtokens.New(db, 0),
		sessions.New(db, 0),
		mgr,
		sender,
		"https://docs.example.com",
		zap.NewNop(),
	)
	e.router = Routes(e.handler)
	return e
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// codeFromEmail pulls the 6-digit code out of the text body.
func codeFromEmail(t *testing.T, email mailer.Email) string {
	t.Helper()
	_, rest, found := strings.Cut(email.TextBody, "code is: ")
	if !found {
		t.Fatalf("no code in email body: %q", email.TextBody)
	}
	code, _, _ := strings.Cut(rest, "\n")
	return code
}

// tokenFromEmail pulls the magic link token out of the text body.
func tokenFromEmail(t *testing.T, email mailer.Email) string {
	t.Helper()
	_, rest, found := strings.Cut(email.TextBody, "/_auth/email/verify/")
	if !found {
		t.Fatalf("no magic link in email body: %q", email.TextBody)
	}
	token, _, _ := strings.Cut(rest, "\n")
	return token
}

func TestSend_MagicLinkFlow(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)

	rec := postForm(e.router, "/send", url.Values{
		"site":   {"/docs"},
		"email":  {"reader@example.com"},
		"return": {"/docs/guide.html"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d, body %s", rec.Code, rec.Body.String())
	}

	email := e.sender.last(t)
	if email.To != "reader@example.com" {
		t.Errorf("email to = %q", email.To)
	}
	if !strings.Contains(email.Subject, "Docs") {
		t.Errorf("subject = %q", email.Subject)
	}
	if len(codeFromEmail(t, email)) != emailtokens.CodeLength {
		t.Errorf("code length wrong in %q", email.TextBody)
	}

	// The magic link completes the sign-in and sets a cookie.
	req := httptest.NewRequest(http.MethodGet, "/verify/"+tokenFromEmail(t, email), nil)
	req.Header.Set("Accept", "text/html")
	verifyRec := httptest.NewRecorder()
	e.router.ServeHTTP(verifyRec, req)

	if verifyRec.Code != http.StatusSeeOther {
		t.Fatalf("verify status = %d, body %s", verifyRec.Code, verifyRec.Body.String())
	}
	if loc := verifyRec.Header().Get("Location"); loc != "/docs/guide.html" {
		t.Errorf("verify redirect = %q", loc)
	}
	if len(verifyRec.Result().Cookies()) == 0 {
		t.Error("no session cookie issued")
	}

	// The email address is now verified.
	user, err := e.users.GetByEmail(ctx, "reader@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if !user.EmailVerified {
		t.Error("email not marked verified")
	}
}

func TestSend_EmailAuthDisabled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthGoogle, true)

	rec := postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(e.sender.sent) != 0 {
		t.Error("email sent despite disabled auth")
	}
}

func TestSend_DomainNotAllowed(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)
	if err := e.siteAuth.SetEmailSettings(ctx, site.ID, models.FlowMagicLink, []string{"corp.example"}); err != nil {
		t.Fatalf("SetEmailSettings: %v", err)
	}

	rec := postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@gmail.com"},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	rec = postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@CORP.example"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d for allowed domain, body %s", rec.Code, rec.Body.String())
	}
}

func TestSend_RegisterFlowRequiresMembership(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)
	if err := e.siteAuth.SetEmailSettings(ctx, site.ID, models.FlowRegister, nil); err != nil {
		t.Fatalf("SetEmailSettings: %v", err)
	}

	rec := postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for unregistered user", rec.Code)
	}

	user, err := e.users.EnsureByEmail(ctx, "reader@example.com")
	if err != nil {
		t.Fatalf("EnsureByEmail: %v", err)
	}
	if err := e.siteUsers.Register(ctx, site.ID, user.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec = postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d after registration, body %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_CreatesMembershipOnVerify(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)
	if err := e.siteAuth.SetEmailSettings(ctx, site.ID, models.FlowRegister, nil); err != nil {
		t.Fatalf("SetEmailSettings: %v", err)
	}

	rec := postForm(e.router, "/register", url.Values{
		"site":  {"/docs"},
		"email": {"new@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	email := e.sender.last(t)
	if !strings.Contains(email.Subject, "registration") {
		t.Errorf("subject = %q", email.Subject)
	}

	// Membership appears only after verification.
	user, err := e.users.GetByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	registered, err := e.siteUsers.IsRegistered(ctx, site.ID, user.ID)
	if err != nil {
		t.Fatalf("IsRegistered: %v", err)
	}
	if registered {
		t.Fatal("registered before verification")
	}

	rec = postForm(e.router, "/verify-code", url.Values{
		"site":  {"/docs"},
		"email": {"new@example.com"},
		"code":  {codeFromEmail(t, email)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-code status = %d, body %s", rec.Code, rec.Body.String())
	}

	registered, err = e.siteUsers.IsRegistered(ctx, site.ID, user.ID)
	if err != nil {
		t.Fatalf("IsRegistered: %v", err)
	}
	if !registered {
		t.Error("not registered after verification")
	}
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)
	if err := e.siteAuth.SetEmailSettings(ctx, site.ID, models.FlowRegister, nil); err != nil {
		t.Fatalf("SetEmailSettings: %v", err)
	}
	user := e.fixtures.CreateUser(ctx, "member@example.com", "Member")
	if err := e.siteUsers.Register(ctx, site.ID, user.ID); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := postForm(e.router, "/register", url.Values{
		"site":  {"/docs"},
		"email": {"member@example.com"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegister_WrongFlow(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)

	rec := postForm(e.router, "/register", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for magic-link site", rec.Code)
	}
}

func TestVerifyToken_InvalidToken(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/verify/not-a-real-token", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	site := e.fixtures.CreateSite(ctx, "/docs", "Docs")
	e.fixtures.CreateAuthConfig(ctx, site.ID, models.AuthEmail, true)

	rec := postForm(e.router, "/send", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}

	// Guaranteed to differ from the real code.
	code := codeFromEmail(t, e.sender.last(t))
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	rec = postForm(e.router, "/verify-code", url.Values{
		"site":  {"/docs"},
		"email": {"reader@example.com"},
		"code":  {wrong},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEntry_UnknownSite(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/?site=/nope", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
