// internal/app/features/customers/routes.go
package customers

import "github.com/go-chi/chi/v5"

// Routes returns the customer report subrouter, mounted under
// /api/admin/customers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	return r
}
