// internal/app/features/authemail/handler.go

// Package authemail implements email sign-in: a code plus magic link is
// mailed out, and either one completes the session. Sites can run a plain
// magic-link flow or a register flow that gates access on membership.
package authemail

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/siteauth"
	"github.com/ciaranj/piglet/internal/app/store/sites"
	"github.com/ciaranj/piglet/internal/app/store/siteusers"
	"github.com/ciaranj/piglet/internal/app/store/users"
	"github.com/ciaranj/piglet/internal/app/system/auth"
	"github.com/ciaranj/piglet/internal/app/system/htmlsanitize"
	"github.com/ciaranj/piglet/internal/app/system/mailer"
	"github.com/ciaranj/piglet/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the email sign-in endpoints.
type Handler struct {
	Users      *users.Store
	Sites      *sites.Store
	SiteAuth   *siteauth.Store
	SiteUsers  *siteusers.Store
	Tokens     *emailtokens.Store
	Sessions   *sessions.Store
	SessionMgr *auth.SessionManager
	Mailer     mailer.Sender
	BaseURL    string
	Log        *zap.Logger
}

// NewHandler constructs the email sign-in handler.
func NewHandler(userStore *users.Store, siteStore *sites.Store, authStore *siteauth.Store, memberStore *siteusers.Store, tokenStore *emailtokens.Store, sessStore *sessions.Store, mgr *auth.SessionManager, sender mailer.Sender, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userStore,
		Sites:      siteStore,
		SiteAuth:   authStore,
		SiteUsers:  memberStore,
		Tokens:     tokenStore,
		Sessions:   sessStore,
		SessionMgr: mgr,
		Mailer:     sender,
		BaseURL:    baseURL,
		Log:        logger,
	}
}

// siteContext is the validated site + settings for one email operation.
type siteContext struct {
	site     models.Site
	settings *models.EmailSettings
}

// loadSite validates that the site exists and has email auth enabled.
func (h *Handler) loadSite(r *http.Request, sitePath string) (*siteContext, int, string) {
	ctx := r.Context()

	site, err := h.Sites.GetByPath(ctx, sitePath)
	if err != nil {
		h.Log.Error("email auth site lookup failed", zap.Error(err))
		return nil, http.StatusInternalServerError, "internal error"
	}
	if site == nil {
		return nil, http.StatusNotFound, "site not found"
	}

	configs, err := h.SiteAuth.ListConfigs(ctx, site.ID)
	if err != nil {
		h.Log.Error("email auth config lookup failed", zap.Error(err))
		return nil, http.StatusInternalServerError, "internal error"
	}
	enabled := false
	for _, c := range configs {
		if c.AuthType == models.AuthEmail && c.Enabled {
			enabled = true
		}
	}
	if !enabled {
		return nil, http.StatusBadRequest, "email sign-in is not enabled for this site"
	}

	sc := &siteContext{site: *site}
	settings, err := h.SiteAuth.GetEmailSettings(ctx, site.ID)
	if err == nil {
		sc.settings = &settings
	} else if err != siteauth.ErrNotFound {
		h.Log.Error("email settings lookup failed", zap.Error(err))
		return nil, http.StatusInternalServerError, "internal error"
	}
	return sc, 0, ""
}

func (sc *siteContext) flowType() string {
	if sc.settings == nil || sc.settings.FlowType == "" {
		return models.FlowMagicLink
	}
	return sc.settings.FlowType
}

func (sc *siteContext) domainAllowed(email string) bool {
	if sc.settings == nil || len(sc.settings.AllowedDomains) == 0 {
		return true
	}
	return emailDomainIn(email, sc.settings.AllowedDomains)
}

// Send handles POST /_auth/email/send: mails a sign-in code.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := htmlsanitize.Text(r.FormValue("email"))
	sitePath := r.FormValue("site")
	returnTo := r.FormValue("return")
	isResend := r.FormValue("resend") == "true"

	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	sc, status, msg := h.loadSite(r, sitePath)
	if sc == nil {
		writeError(w, status, msg)
		return
	}
	if !sc.domainAllowed(email) {
		writeError(w, http.StatusForbidden, "email domain not allowed for this site")
		return
	}

	user, err := h.Users.EnsureByEmail(ctx, email)
	if err != nil {
		h.Log.Error("user lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if sc.flowType() == models.FlowRegister {
		registered, err := h.SiteUsers.IsRegistered(ctx, sc.site.ID, user.ID)
		if err != nil {
			h.Log.Error("membership lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !registered {
			writeError(w, http.StatusForbidden, "not registered for this site")
			return
		}
	}

	res, err := h.Tokens.Create(ctx, user.ID, sc.site.ID, user.Email, emailtokens.PurposeLogin, returnTo, isResend)
	if err == emailtokens.ErrTooManyResends {
		writeError(w, http.StatusTooManyRequests, "too many resend requests")
		return
	}
	if err != nil {
		h.Log.Error("verification creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	msgOut := mailer.BuildLoginEmail(mailer.LoginEmailData{
		SiteName:  sc.site.Name,
		Code:      res.Code,
		MagicLink: h.BaseURL + "/_auth/email/verify/" + res.Token,
		ExpiresIn: expiresIn(h.Tokens),
	})
	msgOut.To = user.Email
	if err := h.Mailer.Send(msgOut); err != nil {
		h.Log.Error("sign-in mail failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not send email")
		return
	}

	writeJSON(w, map[string]any{"ok": true})
}

// Register handles POST /_auth/email/register: creates a membership and
// mails a confirmation code. Only sites running the register flow.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := htmlsanitize.Text(r.FormValue("email"))
	sitePath := r.FormValue("site")

	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	sc, status, msg := h.loadSite(r, sitePath)
	if sc == nil {
		writeError(w, status, msg)
		return
	}
	if sc.flowType() != models.FlowRegister {
		writeError(w, http.StatusBadRequest, "site does not use the register flow")
		return
	}
	if !sc.domainAllowed(email) {
		writeError(w, http.StatusForbidden, "email domain not allowed for this site")
		return
	}

	user, err := h.Users.EnsureByEmail(ctx, email)
	if err != nil {
		h.Log.Error("user creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	registered, err := h.SiteUsers.IsRegistered(ctx, sc.site.ID, user.ID)
	if err != nil {
		h.Log.Error("membership lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if registered {
		writeError(w, http.StatusBadRequest, "already registered for this site")
		return
	}

	res, err := h.Tokens.Create(ctx, user.ID, sc.site.ID, user.Email, emailtokens.PurposeRegister, "", false)
	if err != nil {
		h.Log.Error("verification creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	msgOut := mailer.BuildRegistrationEmail(mailer.LoginEmailData{
		SiteName:  sc.site.Name,
		Code:      res.Code,
		MagicLink: h.BaseURL + "/_auth/email/verify/" + res.Token,
		ExpiresIn: expiresIn(h.Tokens),
	})
	msgOut.To = user.Email
	if err := h.Mailer.Send(msgOut); err != nil {
		h.Log.Error("registration mail failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not send email")
		return
	}

	writeJSON(w, map[string]any{"ok": true})
}

// VerifyToken handles GET /_auth/email/verify/{token}: the magic link.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	v, err := h.Tokens.VerifyToken(r.Context(), chi.URLParam(r, "token"))
	if err == emailtokens.ErrNotFound {
		http.Error(w, "This link has expired or was already used.", http.StatusGone)
		return
	}
	if err != nil {
		h.Log.Error("token verification failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.completeVerification(w, r, v)
}

// VerifyCode handles POST /_auth/email/verify-code: the typed code.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := htmlsanitize.Text(r.FormValue("email"))
	sitePath := r.FormValue("site")
	code := r.FormValue("code")

	sc, status, msg := h.loadSite(r, sitePath)
	if sc == nil {
		writeError(w, status, msg)
		return
	}

	user, err := h.Users.GetByEmail(ctx, email)
	if err == users.ErrNotFound {
		writeError(w, http.StatusBadRequest, "invalid code")
		return
	}
	if err != nil {
		h.Log.Error("user lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	v, err := h.Tokens.VerifyCode(ctx, user.ID, sc.site.ID, code)
	switch err {
	case nil:
	case emailtokens.ErrNotFound, emailtokens.ErrInvalidCode:
		writeError(w, http.StatusBadRequest, "invalid code")
		return
	case emailtokens.ErrTooManyAttempts:
		writeError(w, http.StatusTooManyRequests, "too many attempts; request a new code")
		return
	default:
		h.Log.Error("code verification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.completeVerification(w, r, v)
}

// completeVerification finishes either verification path: the email is
// confirmed, register-flow verifications create the membership, and a
// site-scoped session is issued.
func (h *Handler) completeVerification(w http.ResponseWriter, r *http.Request, v *emailtokens.Verification) {
	ctx := r.Context()

	if err := h.Users.MarkEmailVerified(ctx, v.UserID); err != nil && err != users.ErrNotFound {
		h.Log.Warn("marking email verified failed", zap.Error(err))
	}

	if v.Purpose == emailtokens.PurposeRegister {
		if err := h.SiteUsers.Register(ctx, v.SiteID, v.UserID); err != nil && err != siteusers.ErrAlreadyRegistered {
			h.Log.Error("membership creation failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	siteID := v.SiteID
	sess, err := h.Sessions.Create(ctx, v.UserID, models.AuthEmail, &siteID)
	if err != nil {
		h.Log.Error("session creation failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.SessionMgr.Issue(w, r, sess.ID); err != nil {
		h.Log.Error("session cookie issue failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	fallback := "/"
	if site, err := h.Sites.GetByID(ctx, v.SiteID); err == nil {
		fallback = site.Path + "/"
	}
	dest := urlutil.SafeReturn(v.ReturnTo, "", fallback)

	h.Log.Info("email sign-in completed",
		zap.String("user_id", v.UserID.Hex()),
		zap.String("purpose", v.Purpose))

	if auth.WantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "redirect": dest})
}

func expiresIn(tokens *emailtokens.Store) string {
	return fmt.Sprintf("%d minutes", int(tokens.Expiry().Minutes()))
}

func emailDomainIn(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range domains {
		if strings.EqualFold(domain, d) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
