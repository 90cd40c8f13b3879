package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. tenant is
// the company resolution middleware; every /api/v1 route runs bound to the
// partition it selects.
func MountRoutes(r chi.Router, h *Handlers, tenant func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tenant)

		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Companies (directory)
		r.Get("/companies", h.ListCompanies)
		r.Post("/companies", h.ProvisionCompany)
		r.Get("/companies/current", h.CurrentCompany)
		r.Get("/companies/{id}", h.GetCompany)
		r.Patch("/companies/{id}", h.UpdateCompany)

		// Users (current company)
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
		r.Get("/users/{id}", h.GetUser)
		r.Post("/users/{id}/schedule-deletion", h.ScheduleUserDeletion)
	})
}

// TenantError writes resolution and binding failures raised by the tenant
// middleware using the API error envelope.
func TenantError(w http.ResponseWriter, _ *http.Request, err error) {
	writeDomainError(w, err, "company does not exist")
}
