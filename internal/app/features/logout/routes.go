// internal/app/features/logout/routes.go
package logout

import "github.com/go-chi/chi/v5"

// Routes returns the sign-out subrouter, mounted at /api/auth/logout
// behind LoadSessionUser.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.SignOut)
	return r
}
