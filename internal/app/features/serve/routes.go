// internal/app/features/serve/routes.go
package serve

import "github.com/go-chi/chi/v5"

// Routes returns the catch-all content router. Mounted last, after the
// reserved service routes.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.Serve)
	r.Head("/*", h.Serve)
	return r
}
