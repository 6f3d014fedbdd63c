// internal/app/features/authsession/routes.go
package authsession

import "github.com/go-chi/chi/v5"

// Routes returns the session subrouter, mounted under /_auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/session", h.Session)
	r.Post("/logout", h.Logout)
	r.Get("/login", h.Login)
	r.Get("/register", h.Register)
	return r
}
