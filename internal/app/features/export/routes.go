// internal/app/features/export/routes.go
package export

import "github.com/go-chi/chi/v5"

// Routes returns the export subrouter, mounted under /api/admin/export.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/reviews.csv", h.Reviews)
	r.Get("/branch-stats.csv", h.BranchStats)
	return r
}
