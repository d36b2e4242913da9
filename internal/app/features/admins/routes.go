// internal/app/features/admins/routes.go
package admins

import (
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin-account subrouter, mounted under
// /api/admin/admins. Every route requires manage_admins, which only
// owners hold.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireAction(authz.ActionManageAdmins))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{adminID}", h.Update)
	r.Delete("/{adminID}", h.Delete)
	return r
}
