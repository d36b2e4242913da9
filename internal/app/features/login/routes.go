// internal/app/features/login/routes.go
package login

import (
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the sign-in subrouter, mounted under /api/auth.
// LoadSessionUser on the parent router feeds RequireSignedIn here.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.SignIn)
	r.With(sm.RequireSignedIn).Get("/me", h.Me)
	return r
}
