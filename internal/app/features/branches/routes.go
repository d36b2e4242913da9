// internal/app/features/branches/routes.go
package branches

import (
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the branch administration subrouter, mounted under
// /api/admin/branches. Listing is open to every admin role; writes
// require manage_branches.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(sm.RequireAction(authz.ActionManageBranches))
		r.Post("/", h.Create)
		r.Put("/{branchID}", h.Update)
		r.Delete("/{branchID}", h.Delete)
	})
	return r
}
