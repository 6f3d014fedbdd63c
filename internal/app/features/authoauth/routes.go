// internal/app/features/authoauth/routes.go
package authoauth

import "github.com/go-chi/chi/v5"

// Routes returns one provider's subrouter, mounted under
// /_auth/{provider}.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/login", h.ServeLogin)
	r.Get("/callback", h.ServeCallback)
	return r
}
