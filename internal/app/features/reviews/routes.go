// internal/app/features/reviews/routes.go
package reviews

import "github.com/go-chi/chi/v5"

// Routes returns the admin review subrouter, mounted under
// /api/admin/reviews behind the session middleware.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}
