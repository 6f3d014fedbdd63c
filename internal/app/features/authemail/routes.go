// internal/app/features/authemail/routes.go
package authemail

import "github.com/go-chi/chi/v5"

// Routes returns the email sign-in subrouter, mounted under /_auth/email.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Entry)
	r.Post("/send", h.Send)
	r.Post("/register", h.Register)
	r.Get("/verify/{token}", h.VerifyToken)
	r.Post("/verify-code", h.VerifyCode)
	return r
}
