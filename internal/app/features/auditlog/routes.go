// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the audit trail subrouter, mounted under
// /api/admin/audit. The trail records who did what to whom, so the
// whole surface carries the same owner-only gate as admin management.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireAction(authz.ActionManageAdmins))
	r.Get("/", h.List)
	r.Get("/recent", h.Recent)
	r.Get("/failed-logins", h.FailedLogins)
	return r
}
