// internal/app/features/authemail/page.go
package authemail

import (
	"html/template"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

type entryPageData struct {
	SiteName string
	SitePath string
	ReturnTo string
}

// Entry handles GET /_auth/email: the address form, which also accepts
// the mailed code.
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	sitePath := query.Get(r, "site")

	site, err := h.Sites.GetByPath(r.Context(), sitePath)
	if err != nil {
		h.Log.Error("email page site lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.NotFound(w, r)
		return
	}

	data := entryPageData{
		SiteName: site.Name,
		SitePath: site.Path,
		ReturnTo: query.Get(r, "return"),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := entryTemplate.Execute(w, data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

var entryTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Sign in to {{.SiteName}}</title></head>
<body>
  <h1>Sign in to {{.SiteName}}</h1>
  <form method="POST" action="/_auth/email/send">
    <input type="hidden" name="site" value="{{.SitePath}}">
    <input type="hidden" name="return" value="{{.ReturnTo}}">
    <label>Email address <input type="email" name="email" required></label>
    <button type="submit">Send sign-in code</button>
  </form>
  <form method="POST" action="/_auth/email/verify-code">
    <input type="hidden" name="site" value="{{.SitePath}}">
    <label>Email address <input type="email" name="email" required></label>
    <label>Code <input type="text" name="code" inputmode="numeric" required></label>
    <button type="submit">Verify</button>
  </form>
</body>
</html>`))
