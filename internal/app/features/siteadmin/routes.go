// internal/app/features/siteadmin/routes.go
package siteadmin

import (
	"github.com/ciaranj/piglet/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Routes returns the admin API router, mounted under /_pigsty/api.
// corsOrigins lists the admin SPA origins allowed to call it.
func Routes(h *Handler, guard *authz.Guard, corsOrigins []string) chi.Router {
	r := chi.NewRouter()

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAnyAdmin)
		r.Get("/sites", h.ListSites)
		r.Post("/sites", h.CreateSite)
	})

	r.Route("/sites/{siteID}", func(r chi.Router) {
		r.Use(guard.RequireSiteAdmin("siteID"))
		r.Get("/", h.GetSite)
		r.Put("/", h.UpdateSite)
		r.Delete("/", h.DeleteSite)

		r.Get("/versions", h.ListVersions)
		r.Get("/versions/active", h.ActiveVersion)
		r.Post("/upload", h.Upload)
		r.Put("/versions/{versionID}/activate", h.ActivateVersion)
		r.Delete("/versions/{versionID}", h.DeleteVersion)

		r.Get("/auth", h.GetSiteAuth)
		r.Put("/auth", h.PutSiteAuth)

		r.Get("/admins", h.ListSiteAdmins)
		r.Post("/admins", h.AddSiteAdmin)
		r.Delete("/admins/{userID}", h.RemoveSiteAdmin)

		r.Get("/users", h.ListSiteUsers)
		r.Delete("/users/{userID}", h.RemoveSiteUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireGlobalAdmin)
		r.Get("/users", h.ListUsers)
		r.Get("/users/{userID}", h.GetUser)
		r.Get("/admins", h.ListGlobalAdmins)
		r.Post("/admins", h.AddGlobalAdmin)
		r.Delete("/admins/{userID}", h.RemoveGlobalAdmin)
	})

	return r
}
